// Package analysis runs the complaint analysis pipeline: classification,
// violation matching, persistence and escalation scoring.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opengov-labs/kestrel/internal/classify"
	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/match"
	"github.com/opengov-labs/kestrel/internal/policy"
	"github.com/opengov-labs/kestrel/internal/velocity"
)

// analysisTTL bounds how long a completed analysis stays cached. Re-running
// the pipeline for the same record within this window never re-consults the
// external judge.
const analysisTTL = 24 * time.Hour

// Pipeline wires the analysis stages together. Stages are injected so the
// community tier (heuristic classifier, fallback resolver, memory cache)
// and the pro tier (external judge, redis, NATS) share one code path.
type Pipeline struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	classifier classify.Classifier
	resolver   *match.Resolver
	velocity   *velocity.Service
	policies   *policy.Engine
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// New creates an analysis pipeline. Cache, bus and policy engine are
// optional; a nil policy engine scores every record at priority zero.
func New(
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	classifier classify.Classifier,
	resolver *match.Resolver,
	vel *velocity.Service,
	policies *policy.Engine,
) *Pipeline {
	return &Pipeline{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		classifier: classifier,
		resolver:   resolver,
		velocity:   vel,
		policies:   policies,
		logger:     slog.Default().With("component", "analysis"),
		tracer:     otel.Tracer("kestrel-analysis"),
		now:        time.Now,
	}
}

// Result is the outcome of one pipeline run.
type Result struct {
	FeedbackID     string                 `json:"feedbackId"`
	Classification *domain.Classification `json:"classification"`
	Violations     []domain.Violation     `json:"violations"`
	Priority       int                    `json:"priority"`
	RecentCount    int64                  `json:"recentCount"`
	Cached         bool                   `json:"cached"`
	ElapsedMs      int64                  `json:"elapsedMs"`
}

// Submit stores a new feedback record and announces it on the bus for
// asynchronous analysis. The record id is generated when absent.
func (p *Pipeline) Submit(ctx context.Context, fb *domain.FeedbackRecord) error {
	if fb.Entity == "" {
		return domain.Validationf("entity is required")
	}
	if fb.ComplaintText() == "" && len(fb.DislikeTraits) == 0 {
		return domain.Validationf("feedback text or dislike traits are required")
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = p.now().UTC()
	}

	if err := p.repo.SaveFeedback(ctx, fb); err != nil {
		return err
	}

	p.logger.Info("feedback received", "feedbackId", fb.ID, "entity", fb.Entity, "type", fb.Type)
	p.publish(ctx, domain.TopicFeedbackReceived, map[string]any{
		"feedbackId": fb.ID,
		"entity":     fb.Entity,
	})
	return nil
}

// Process runs the full pipeline for a stored feedback record: classify,
// gate, match violations, persist the verdict once, then score escalation
// priority. A record that was already analyzed returns a ConflictError.
func (p *Pipeline) Process(ctx context.Context, feedbackID string) (*Result, error) {
	start := p.now()

	ctx, span := p.tracer.Start(ctx, "analysis.process",
		trace.WithAttributes(attribute.String("feedback.id", feedbackID)))
	defer span.End()

	fb, err := p.repo.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if fb.ProcessedAt != nil {
		return nil, domain.Conflictf("feedback %s already analyzed", feedbackID)
	}

	cls, violations, cached, err := p.analyze(ctx, fb)
	if err != nil {
		return nil, err
	}

	if err := p.repo.SetClassification(ctx, fb.ID, cls, violations, p.now().UTC()); err != nil {
		return nil, err
	}

	var recent int64
	if cls.IsComplaint && p.velocity != nil {
		if _, err := p.velocity.Record(ctx, fb.Entity); err != nil {
			p.logger.Warn("velocity record failed", "entity", fb.Entity, "error", err)
		}
		recent, err = p.velocity.Count(ctx, fb.Entity)
		if err != nil {
			p.logger.Warn("velocity count failed", "entity", fb.Entity, "error", err)
			recent = 0
		}
	}

	priority := 0
	if p.policies != nil {
		priority = p.policies.Evaluate(policy.Input{
			Classification:   *cls,
			ViolationCount:   len(violations),
			RecentComplaints: recent,
		})
	}

	elapsed := p.now().Sub(start).Milliseconds()
	p.logger.Info("feedback analyzed",
		"feedbackId", fb.ID,
		"isComplaint", cls.IsComplaint,
		"severity", cls.Severity,
		"violations", len(violations),
		"priority", priority,
		"cached", cached,
		"elapsedMs", elapsed)

	span.SetAttributes(
		attribute.Bool("analysis.is_complaint", cls.IsComplaint),
		attribute.Int("analysis.violations", len(violations)),
		attribute.Int("analysis.priority", priority),
	)

	p.publish(ctx, domain.TopicFeedbackAnalyzed, map[string]any{
		"feedbackId":  fb.ID,
		"entity":      fb.Entity,
		"isComplaint": cls.IsComplaint,
		"severity":    string(cls.Severity),
		"violations":  len(violations),
		"priority":    priority,
	})

	return &Result{
		FeedbackID:     fb.ID,
		Classification: cls,
		Violations:     violations,
		Priority:       priority,
		RecentCount:    recent,
		Cached:         cached,
		ElapsedMs:      elapsed,
	}, nil
}

// Priority scores an already-processed record against the escalation
// policies, using the current complaint velocity of its entity. Read
// surfaces use it to order records within a severity band; re-evaluating at
// read time means policy changes re-rank existing queues.
func (p *Pipeline) Priority(ctx context.Context, fb *domain.FeedbackRecord) int {
	if p.policies == nil || fb.Classification == nil {
		return 0
	}

	var recent int64
	if p.velocity != nil {
		n, err := p.velocity.Count(ctx, fb.Entity)
		if err != nil {
			p.logger.Warn("velocity count failed", "entity", fb.Entity, "error", err)
		} else {
			recent = n
		}
	}

	return p.policies.Evaluate(policy.Input{
		Classification:   *fb.Classification,
		ViolationCount:   len(fb.Violations),
		RecentComplaints: recent,
	})
}

// analyze produces the classification and violation list, consulting the
// cache first so a retried run after a persistence failure does not hit
// the external judge twice.
func (p *Pipeline) analyze(ctx context.Context, fb *domain.FeedbackRecord) (*domain.Classification, []domain.Violation, bool, error) {
	if p.cache != nil {
		cached, err := p.cache.GetAnalysis(ctx, fb.ID)
		if err != nil {
			p.logger.Warn("analysis cache read failed", "feedbackId", fb.ID, "error", err)
		} else if cached != nil {
			cls := cached.Classification
			return &cls, cached.Violations, true, nil
		}
	}

	cls, err := p.classifier.Classify(ctx, classify.Input{
		FeedbackText:  fb.ComplaintText(),
		Entity:        fb.Entity,
		Channel:       fb.ServiceCenter,
		DislikeTraits: fb.DislikeTraits,
		FeedbackType:  fb.Type,
	})
	if err != nil {
		return nil, nil, false, err
	}

	// Violation matching runs only for complaints above low severity.
	var violations []domain.Violation
	if cls.IsComplaint && cls.Severity != domain.SeverityLow {
		violations, err = p.resolver.Resolve(ctx, match.Input{
			FeedbackID:    fb.ID,
			ComplaintText: fb.ComplaintText(),
			Entity:        fb.Entity,
			Channel:       fb.ServiceCenter,
			DislikeTraits: fb.DislikeTraits,
			Category:      cls.Category,
			Severity:      cls.Severity,
		})
		if err != nil {
			return nil, nil, false, err
		}
	}

	if p.cache != nil {
		entry := &domain.AnalysisCache{Classification: *cls, Violations: violations}
		if err := p.cache.SetAnalysis(ctx, fb.ID, entry, analysisTTL); err != nil {
			p.logger.Warn("analysis cache write failed", "feedbackId", fb.ID, "error", err)
		}
	}

	return cls, violations, false, nil
}

func (p *Pipeline) publish(ctx context.Context, topic string, payload map[string]any) {
	if p.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, topic, data); err != nil {
		p.logger.Warn("failed to publish pipeline event", "topic", topic, "error", err)
	}
}
