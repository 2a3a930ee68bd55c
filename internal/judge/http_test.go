package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/match"
)

func testRequest() *match.JudgeRequest {
	return &match.JudgeRequest{
		ComplaintText: "I waited for three hours",
		Entity:        "Ministry of Interior",
		Category:      domain.CategoryWaitingTime,
		Severity:      domain.SeverityHigh,
		CandidateRules: []match.CandidateRule{
			{Code: "2.1.1", Description: "Monitor customer waiting time", Impact: "high"},
		},
	}
}

func TestHTTPJudge(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		var received match.JudgeRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %s", ct)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("authorization = %q", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
				t.Errorf("decode request: %v", err)
			}
			json.NewEncoder(w).Encode([]domain.Violation{
				{Code: "2.1.1", Confidence: domain.ConfidenceHigh, Explanation: "clear waiting time breach"},
			})
		}))
		defer srv.Close()

		j := New(domain.JudgeConfig{Endpoint: srv.URL, APIKey: "test-key", Timeout: 5})
		got, err := j.Judge(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Judge() error: %v", err)
		}
		if len(got) != 1 || got[0].Code != "2.1.1" {
			t.Fatalf("unexpected violations: %+v", got)
		}
		if received.ComplaintText != "I waited for three hours" {
			t.Error("complaint text not forwarded")
		}
		if len(received.CandidateRules) != 1 {
			t.Errorf("candidates forwarded = %d", len(received.CandidateRules))
		}
	})

	t.Run("EmptyVerdict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[]"))
		}))
		defer srv.Close()

		j := New(domain.JudgeConfig{Endpoint: srv.URL, Timeout: 5})
		got, err := j.Judge(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Judge() error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty verdict, got %d", len(got))
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		j := New(domain.JudgeConfig{Endpoint: srv.URL, Timeout: 5})
		if _, err := j.Judge(context.Background(), testRequest()); err == nil {
			t.Error("expected error for non-200 response")
		}
	})

	t.Run("MalformedResponse", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		j := New(domain.JudgeConfig{Endpoint: srv.URL, Timeout: 5})
		if _, err := j.Judge(context.Background(), testRequest()); err == nil {
			t.Error("expected error for malformed response")
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		j := New(domain.JudgeConfig{Endpoint: "http://127.0.0.1:1", Timeout: 1})
		if _, err := j.Judge(context.Background(), testRequest()); err == nil {
			t.Error("expected transport error")
		}
	})
}
