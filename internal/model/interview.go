package model

import (
	"encoding/json"
	"mock_interview_backend/internal/interview"
	"strings"
	"time"
)

type InterviewStatus string

const (
	InterviewScheduled  InterviewStatus = "scheduled"
	InterviewInProgress InterviewStatus = "in_progress"
	InterviewCompleted  InterviewStatus = "completed"
)

// swagger:model InterviewSession
type InterviewSession struct {
	UUIDBase
	UserID         uint            `gorm:"index;not null" json:"userId"`
	Type           string          `gorm:"size:20;not null" json:"type"`
	SubType        string          `gorm:"size:20" json:"subType,omitempty"`
	Technologies   string          `gorm:"size:500" json:"-"`
	ProjectDetails string          `gorm:"type:text" json:"projectDetails,omitempty"`
	Level          string          `gorm:"size:20" json:"level,omitempty"`
	Difficulty     string          `gorm:"size:10;not null" json:"difficulty"`
	QuestionCount  int             `gorm:"not null" json:"questionCount"`
	Questions      json.RawMessage `gorm:"type:json" json:"questions" swaggertype:"array,object"`
	Status         InterviewStatus `gorm:"size:20;index;default:'scheduled'" json:"status"`

	Score              *int            `json:"score,omitempty"`
	ConfidenceScore    *int            `json:"confidenceScore,omitempty"`
	EnthusiasmScore    *int            `json:"enthusiasmScore,omitempty"`
	CommunicationScore *int            `json:"communicationScore,omitempty"`
	SelfAwarenessScore *int            `json:"selfAwarenessScore,omitempty"`
	SuccessRate        *int            `json:"successRate,omitempty"`
	Report             json.RawMessage `gorm:"type:json" json:"-"`
	Responses          json.RawMessage `gorm:"type:json" json:"-"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
}

func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// NewInterviewSession 由已校验的配置和选出的题目构造记录
func NewInterviewSession(userID uint, cfg interview.SessionConfig, questions []interview.Question) (*InterviewSession, error) {
	qs, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}
	return &InterviewSession{
		UUIDBase:       UUIDBase{ID: GenerateUUID()},
		UserID:         userID,
		Type:           string(cfg.Type),
		SubType:        string(cfg.SubType),
		Technologies:   strings.Join(cfg.Technologies, ","),
		ProjectDetails: cfg.ProjectDetails,
		Level:          string(cfg.Level),
		Difficulty:     string(cfg.Difficulty),
		QuestionCount:  cfg.QuestionCount,
		Questions:      qs,
		Status:         InterviewScheduled,
	}, nil
}

func (s *InterviewSession) Config() interview.SessionConfig {
	var techs []string
	if s.Technologies != "" {
		techs = strings.Split(s.Technologies, ",")
	}
	return interview.SessionConfig{
		Type:           interview.InterviewType(s.Type),
		SubType:        interview.SubType(s.SubType),
		Technologies:   techs,
		ProjectDetails: s.ProjectDetails,
		Level:          interview.Level(s.Level),
		QuestionCount:  s.QuestionCount,
		Difficulty:     interview.Difficulty(s.Difficulty),
	}
}

func (s *InterviewSession) QuestionList() ([]interview.Question, error) {
	var qs []interview.Question
	if len(s.Questions) == 0 {
		return qs, nil
	}
	err := json.Unmarshal(s.Questions, &qs)
	return qs, err
}

// SetResults 写入报告并标记完成
func (s *InterviewSession) SetResults(report *interview.FeedbackReport, responses []interview.UserResponse, at time.Time) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	rs, err := json.Marshal(responses)
	if err != nil {
		return err
	}
	s.Report = raw
	s.Responses = rs
	s.Score = intPtr(report.Score)
	s.ConfidenceScore = intPtr(report.ConfidenceScore)
	s.EnthusiasmScore = intPtr(report.EnthusiasmScore)
	s.CommunicationScore = intPtr(report.CommunicationScore)
	s.SelfAwarenessScore = intPtr(report.SelfAwarenessScore)
	s.SuccessRate = intPtr(report.SuccessRate)
	s.Status = InterviewCompleted
	s.CompletedAt = &at
	return nil
}

// FeedbackReport 未完成的记录返回 nil
func (s *InterviewSession) FeedbackReport() (*interview.FeedbackReport, error) {
	if len(s.Report) == 0 {
		return nil, nil
	}
	var r interview.FeedbackReport
	if err := json.Unmarshal(s.Report, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *InterviewSession) UserResponses() ([]interview.UserResponse, error) {
	var rs []interview.UserResponse
	if len(s.Responses) == 0 {
		return rs, nil
	}
	err := json.Unmarshal(s.Responses, &rs)
	return rs, err
}

func intPtr(v int) *int { return &v }
