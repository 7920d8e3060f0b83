package util

import (
	"errors"
	"fmt"
	"mock_interview_backend/internal/interview"
	"net/http"
	"testing"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&interview.ConfigurationError{Field: "type", Reason: "bad"}, http.StatusBadRequest},
		{&interview.ProviderConnectionError{Op: "connect", Err: errors.New("x")}, http.StatusBadGateway},
		{fmt.Errorf("save: %w", &interview.PersistenceError{Op: "write", Err: errors.New("x")}), http.StatusServiceUnavailable},
		{ErrInterviewNotFound, http.StatusNotFound},
		{ErrPermissionDenied, http.StatusForbidden},
		{interview.ErrCallInProgress, http.StatusConflict},
		{interview.ErrReportPending, http.StatusAccepted},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("err=%v got=%d want=%d", tc.err, got, tc.want)
		}
	}
}
