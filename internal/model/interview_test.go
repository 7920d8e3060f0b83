package model

import (
	"mock_interview_backend/internal/interview"
	"reflect"
	"testing"
	"time"
)

func TestInterviewSession_ConfigRoundTrip(t *testing.T) {
	cfg := interview.SessionConfig{
		Type:          interview.TypeJob,
		SubType:       interview.SubTypeTechnical,
		Technologies:  []string{"React", "TypeScript"},
		QuestionCount: 8,
		Difficulty:    interview.DifficultyMedium,
	}
	qs, _ := interview.Select(cfg)
	rec, err := NewInterviewSession(7, cfg, qs)
	if err != nil {
		t.Fatalf("NewInterviewSession error: %v", err)
	}
	if rec.ID == "" || rec.Status != InterviewScheduled || rec.UserID != 7 {
		t.Fatalf("rec=%+v", rec)
	}
	if !reflect.DeepEqual(rec.Config(), cfg) {
		t.Fatalf("config=%+v", rec.Config())
	}
	got, err := rec.QuestionList()
	if err != nil || !reflect.DeepEqual(got, qs) {
		t.Fatalf("questions=%v err=%v", got, err)
	}
}

func TestInterviewSession_SetResults(t *testing.T) {
	rec := &InterviewSession{Type: "sales"}
	if r, err := rec.FeedbackReport(); r != nil || err != nil {
		t.Fatalf("pending record must have no report")
	}

	report := interview.FallbackReport(interview.TypeSales)
	responses := []interview.UserResponse{{QuestionID: "sales-q1", Response: "We build websites."}}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := rec.SetResults(report, responses, at); err != nil {
		t.Fatalf("SetResults error: %v", err)
	}
	if rec.Status != InterviewCompleted || rec.CompletedAt == nil || *rec.Score != 75 || *rec.SuccessRate != 72 {
		t.Fatalf("rec=%+v", rec)
	}
	got, err := rec.FeedbackReport()
	if err != nil || !reflect.DeepEqual(got, report) {
		t.Fatalf("report=%+v err=%v", got, err)
	}
	rs, _ := rec.UserResponses()
	if !reflect.DeepEqual(rs, responses) {
		t.Fatalf("responses=%v", rs)
	}
}
