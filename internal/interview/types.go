package interview

import (
	"fmt"
	"time"
)

type InterviewType string

const (
	TypeJob     InterviewType = "job"
	TypeSales   InterviewType = "sales"
	TypeEnglish InterviewType = "english"
)

type SubType string

const (
	SubTypeTechnical  SubType = "technical"
	SubTypeBehavioral SubType = "behavioral"
	SubTypeMixed      SubType = "mixed"
)

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	MinQuestionCount = 3
	MaxQuestionCount = 20
)

func (t InterviewType) Valid() bool {
	switch t {
	case TypeJob, TypeSales, TypeEnglish:
		return true
	}
	return false
}

// SessionConfig 会话创建时确定，之后不可变
type SessionConfig struct {
	Type           InterviewType `json:"type" yaml:"type"`
	SubType        SubType       `json:"subType,omitempty" yaml:"subType,omitempty"`
	Technologies   []string      `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	ProjectDetails string        `json:"projectDetails,omitempty" yaml:"projectDetails,omitempty"`
	Level          Level         `json:"level,omitempty" yaml:"level,omitempty"`
	QuestionCount  int           `json:"questionCount" yaml:"questionCount"`
	Difficulty     Difficulty    `json:"difficulty" yaml:"difficulty"`
}

// Validate 校验类型与取值范围，subType/level 未识别时按默认处理不报错
func (c SessionConfig) Validate() error {
	if !c.Type.Valid() {
		return &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unsupported interview type %q", c.Type)}
	}
	if c.QuestionCount < MinQuestionCount || c.QuestionCount > MaxQuestionCount {
		return &ConfigurationError{
			Field:  "questionCount",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinQuestionCount, MaxQuestionCount, c.QuestionCount),
		}
	}
	switch c.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return &ConfigurationError{Field: "difficulty", Reason: fmt.Sprintf("unsupported difficulty %q", c.Difficulty)}
	}
	return nil
}

// EffectiveLevel english 类型缺省或未识别的级别回落到 intermediate
func (c SessionConfig) EffectiveLevel() Level {
	switch c.Level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return c.Level
	}
	return LevelIntermediate
}

func (c SessionConfig) HasTechnology(name string) bool {
	for _, t := range c.Technologies {
		if t == name {
			return true
		}
	}
	return false
}

type Question struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category" yaml:"category"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type TranscriptEntry struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time,omitempty"`
}

type CallState string

const (
	StateInactive   CallState = "INACTIVE"
	StateConnecting CallState = "CONNECTING"
	StateActive     CallState = "ACTIVE"
	StateFinished   CallState = "FINISHED"
)

type UserResponse struct {
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
}

// PairResponses 第 i 条用户发言对应第 i 个问题，超出问题数的发言使用 q<i> 作为编号
func PairResponses(questions []Question, transcript []TranscriptEntry) []UserResponse {
	var out []UserResponse
	for _, entry := range transcript {
		if entry.Role != RoleUser {
			continue
		}
		i := len(out)
		id := fmt.Sprintf("q%d", i)
		if i < len(questions) {
			id = questions[i].ID
		}
		out = append(out, UserResponse{QuestionID: id, Response: entry.Content})
	}
	return out
}

type FeedbackDetail struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type FeedbackReport struct {
	Score              int            `json:"score"`
	ConfidenceScore    int            `json:"confidenceScore"`
	EnthusiasmScore    int            `json:"enthusiasmScore"`
	CommunicationScore int            `json:"communicationScore"`
	SelfAwarenessScore int            `json:"selfAwarenessScore"`
	SuccessRate        int            `json:"successRate"`
	Feedback           FeedbackDetail `json:"feedback"`
	Metrics            map[string]int `json:"metrics"`
	Tips               []string       `json:"tips"`
	Summary            string         `json:"summary"`
}

func cloneReport(r *FeedbackReport) *FeedbackReport {
	cp := *r
	cp.Feedback.Strengths = append([]string(nil), r.Feedback.Strengths...)
	cp.Feedback.Improvements = append([]string(nil), r.Feedback.Improvements...)
	cp.Tips = append([]string(nil), r.Tips...)
	if r.Metrics != nil {
		cp.Metrics = make(map[string]int, len(r.Metrics))
		for k, v := range r.Metrics {
			cp.Metrics[k] = v
		}
	}
	return &cp
}
