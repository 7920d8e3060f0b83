package controller

import (
	"context"
	"encoding/json"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/internal/model"
	"mock_interview_backend/internal/service"
	"mock_interview_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeOrchestrator struct {
	started   interview.SessionConfig
	startErr  error
	report    *interview.FeedbackReport
	reportErr error
	muted     *bool
	retryErr  error
	attachErr error
}

func (f *fakeOrchestrator) StartSession(ctx context.Context, userID uint, userName string, cfg interview.SessionConfig) (*service.SessionDetail, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f.started = cfg
	return &service.SessionDetail{ID: "s1", Config: cfg, Status: model.InterviewScheduled}, nil
}

func (f *fakeOrchestrator) ListSessions(ctx context.Context, userID uint) ([]model.InterviewSession, error) {
	return []model.InterviewSession{{UserID: userID}}, nil
}

func (f *fakeOrchestrator) GetSession(ctx context.Context, userID uint, id string) (*service.SessionDetail, error) {
	if id != "s1" {
		return nil, util.ErrInterviewNotFound
	}
	if userID != 7 {
		return nil, util.ErrPermissionDenied
	}
	return &service.SessionDetail{ID: id}, nil
}

func (f *fakeOrchestrator) BeginCall(ctx context.Context, userID uint, userName, id string) (*interview.SessionStatus, error) {
	return nil, &interview.ProviderConnectionError{Err: context.DeadlineExceeded}
}

func (f *fakeOrchestrator) EndCall(ctx context.Context, userID uint, id string) (*interview.SessionStatus, error) {
	return nil, interview.ErrNotActive
}

func (f *fakeOrchestrator) SetMuted(ctx context.Context, userID uint, id string, muted bool) (*interview.SessionStatus, error) {
	f.muted = &muted
	return &interview.SessionStatus{ID: id, State: interview.StateActive, Muted: muted}, nil
}

func (f *fakeOrchestrator) Transcript(ctx context.Context, userID uint, id string) ([]interview.TranscriptEntry, error) {
	return nil, nil
}

func (f *fakeOrchestrator) Report(ctx context.Context, userID uint, id string) (*interview.FeedbackReport, error) {
	return f.report, f.reportErr
}

func (f *fakeOrchestrator) RetryResults(ctx context.Context, userID uint, id string) error {
	return f.retryErr
}

func (f *fakeOrchestrator) CanAttach(ctx context.Context, userID uint, userName, id string) error {
	return f.attachErr
}

func setupRouter(f *fakeOrchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", uint(7))
		c.Next()
	})
	ctrl := NewInterviewController(f, nil)
	g := r.Group("/api/interviews")
	g.POST("", ctrl.StartInterview)
	g.GET("", ctrl.ListInterviews)
	g.GET("/:id", ctrl.GetInterview)
	g.POST("/:id/call", ctrl.BeginCall)
	g.DELETE("/:id/call", ctrl.EndCall)
	g.POST("/:id/mute", ctrl.Mute)
	g.POST("/:id/unmute", ctrl.Unmute)
	g.GET("/:id/transcript", ctrl.GetTranscript)
	g.GET("/:id/report", ctrl.GetReport)
	g.POST("/:id/report/retry", ctrl.RetryReport)
	g.GET("/:id/ws", ctrl.HandleWS)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartInterview(t *testing.T) {
	f := &fakeOrchestrator{}
	r := setupRouter(f)

	w := do(r, http.MethodPost, "/api/interviews", `{"type":"job","subType":"technical","technologies":["react"],"questionCount":8,"difficulty":"medium"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if f.started.Type != interview.TypeJob || !f.started.HasTechnology("react") {
		t.Fatalf("config=%+v", f.started)
	}

	w = do(r, http.MethodPost, "/api/interviews", `{"type":"job","questionCount":50,"difficulty":"medium"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out of range count code=%d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/interviews", `{"type":"job"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields code=%d", w.Code)
	}

	f.startErr = &interview.PersistenceError{Op: "create", Err: context.Canceled}
	w = do(r, http.MethodPost, "/api/interviews", `{"type":"sales","questionCount":5,"difficulty":"easy"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("persistence failure code=%d", w.Code)
	}
}

func TestInterviewRoutes_ErrorMapping(t *testing.T) {
	r := setupRouter(&fakeOrchestrator{})

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/interviews/s1", http.StatusOK},
		{http.MethodGet, "/api/interviews/nope", http.StatusNotFound},
		{http.MethodPost, "/api/interviews/s1/call", http.StatusBadGateway},
		{http.MethodDelete, "/api/interviews/s1/call", http.StatusConflict},
		{http.MethodGet, "/api/interviews", http.StatusOK},
	}
	for _, tc := range cases {
		if w := do(r, tc.method, tc.path, ""); w.Code != tc.want {
			t.Errorf("%s %s code=%d want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestMuteAndTranscript(t *testing.T) {
	f := &fakeOrchestrator{}
	r := setupRouter(f)

	w := do(r, http.MethodPost, "/api/interviews/s1/mute", "")
	if w.Code != http.StatusOK || f.muted == nil || !*f.muted {
		t.Fatalf("mute code=%d muted=%v", w.Code, f.muted)
	}
	w = do(r, http.MethodPost, "/api/interviews/s1/unmute", "")
	if w.Code != http.StatusOK || *f.muted {
		t.Fatalf("unmute code=%d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/interviews/s1/transcript", "")
	var resp struct {
		Data []interview.TranscriptEntry `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Data == nil {
		t.Fatalf("empty transcript must be an array, body=%s", w.Body.String())
	}
}

func TestGetReport(t *testing.T) {
	f := &fakeOrchestrator{reportErr: interview.ErrReportPending}
	r := setupRouter(f)

	if w := do(r, http.MethodGet, "/api/interviews/s1/report", ""); w.Code != http.StatusAccepted {
		t.Fatalf("pending code=%d", w.Code)
	}

	f.reportErr = nil
	f.report = interview.FallbackReport(interview.TypeEnglish)
	w := do(r, http.MethodGet, "/api/interviews/s1/report", "")
	var resp struct {
		Data interview.FeedbackReport `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Data.Score != 75 || len(resp.Data.Metrics) != 5 {
		t.Fatalf("code=%d report=%+v", w.Code, resp.Data)
	}

	f.retryErr = &interview.PersistenceError{Op: "write results", Err: context.DeadlineExceeded}
	if w := do(r, http.MethodPost, "/api/interviews/s1/report/retry", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("retry code=%d", w.Code)
	}
}

func TestHandleWS_RejectsForeignSession(t *testing.T) {
	r := setupRouter(&fakeOrchestrator{attachErr: util.ErrPermissionDenied})
	if w := do(r, http.MethodGet, "/api/interviews/s1/ws", ""); w.Code != http.StatusForbidden {
		t.Fatalf("code=%d", w.Code)
	}
}
