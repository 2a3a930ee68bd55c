// Package judge provides the transport client for the external judgment
// collaborator. Only the contract lives here; the collaborator itself is a
// black box behind an HTTP endpoint.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/match"
)

var tracer = otel.Tracer("kestrel-judge")

// HTTPJudge implements match.Judge over a JSON-over-HTTP endpoint.
// Input: the judge request contract. Output: an ordered violation array,
// with [] permitted. Timeouts and transport errors surface to the resolver,
// which fails closed.
type HTTPJudge struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// New creates an HTTP judge client bounded by the given timeout.
func New(cfg domain.JudgeConfig) *HTTPJudge {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPJudge{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Judge posts the complaint context and candidate rules to the collaborator
// and decodes the violation list it returns.
func (j *HTTPJudge) Judge(ctx context.Context, req *match.JudgeRequest) ([]domain.Violation, error) {
	ctx, span := tracer.Start(ctx, "judge.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("judge.category", req.Category),
		attribute.Int("judge.candidates", len(req.CandidateRules)),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call judge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var violations []domain.Violation
	if err := json.NewDecoder(resp.Body).Decode(&violations); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}

	span.SetAttributes(attribute.Int("judge.violations", len(violations)))
	return violations, nil
}
