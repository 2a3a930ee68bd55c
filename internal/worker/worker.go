// Package worker provides asynchronous complaint analysis driven by the
// event bus. Feedback submitted through the intake surface is announced on
// the bus and picked up here, so slow external-judge calls never block the
// submitting request.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opengov-labs/kestrel/internal/analysis"
	"github.com/opengov-labs/kestrel/internal/domain"
)

// Worker consumes feedback.received events and runs the analysis pipeline.
type Worker struct {
	bus      domain.EventBus
	pipeline *analysis.Pipeline
	logger   *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an analysis worker bound to the bus.
func NewWorker(bus domain.EventBus, pipeline *analysis.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		pipeline: pipeline,
		logger:   slog.Default().With("component", "worker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the feedback intake topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicFeedbackReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("analysis worker started", "topic", domain.TopicFeedbackReceived)
	return nil
}

// feedbackMessage is the payload published on feedback intake.
type feedbackMessage struct {
	FeedbackID string `json:"feedbackId"`
	Entity     string `json:"entity"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var fm feedbackMessage
	if err := json.Unmarshal(msg.Payload, &fm); err != nil {
		w.logger.Error("failed to parse feedback message", "messageId", msg.ID, "error", err)
		return err
	}
	if fm.FeedbackID == "" {
		w.logger.Error("feedback message missing id", "messageId", msg.ID)
		return domain.Validationf("feedback message missing id")
	}

	res, err := w.pipeline.Process(ctx, fm.FeedbackID)
	if err != nil {
		// A record analyzed by a competing worker is not a failure worth
		// redelivering.
		if domain.IsConflict(err) {
			w.logger.Debug("feedback already analyzed", "feedbackId", fm.FeedbackID)
			return nil
		}
		w.logger.Error("analysis failed", "feedbackId", fm.FeedbackID, "error", err)
		return err
	}

	w.logger.Info("feedback processed",
		"feedbackId", fm.FeedbackID,
		"isComplaint", res.Classification.IsComplaint,
		"violations", len(res.Violations),
		"priority", res.Priority,
		"durationMs", res.ElapsedMs,
	)
	return nil
}

// Stop cancels the subscription context and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil
	w.logger.Info("analysis worker stopped")
	return nil
}

// Stats reports the active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
