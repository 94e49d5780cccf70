// Package worker runs dataset regenerations from the EventBus and keeps a
// node in step with swaps announced by other nodes.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Service is the part of the investigation service the worker drives.
type Service interface {
	Regenerate(ctx context.Context, seed int64, jobID string) (*domain.DatasetRecord, error)
	Reload(ctx context.Context, datasetID string) error
	NodeID() string
}

// Worker consumes regeneration requests and swap events.
type Worker struct {
	bus     domain.EventBus
	service Service

	// one regeneration at a time; each builds a full snapshot
	regenMu sync.Mutex

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Regenerate subscribes to regeneration requests.
	Regenerate bool

	// FollowSwaps reloads datasets installed by other nodes.
	FollowSwaps bool
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the configured topics.
func (w *Worker) Start(cfg Config) error {
	if cfg.Regenerate {
		sub, err := w.bus.Subscribe(w.ctx, domain.TopicRegenerate, w.handleRegenerate)
		if err != nil {
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	if cfg.FollowSwaps {
		sub, err := w.bus.Subscribe(w.ctx, domain.TopicSwapped, w.handleSwapped)
		if err != nil {
			w.unsubscribeAll()
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("worker started",
		"regenerate", cfg.Regenerate,
		"follow_swaps", cfg.FollowSwaps,
		"node_id", w.service.NodeID(),
	)
	return nil
}

// handleRegenerate builds and installs a dataset for one request.
func (w *Worker) handleRegenerate(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var req domain.RegenerateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse regenerate request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.JobID == "" {
		req.JobID = msg.ID
	}

	w.regenMu.Lock()
	defer w.regenMu.Unlock()

	start := time.Now()
	rec, err := w.service.Regenerate(ctx, req.Seed, req.JobID)
	if err != nil {
		slog.Error("regeneration failed",
			"job_id", req.JobID,
			"seed", req.Seed,
			"error", err,
		)
		return err
	}

	slog.Info("regeneration job finished",
		"job_id", req.JobID,
		"dataset_id", rec.ID,
		"seed", req.Seed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleSwapped reloads a dataset another node installed.
func (w *Worker) handleSwapped(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var ev domain.SwapEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		slog.Error("failed to parse swap event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if ev.Origin == w.service.NodeID() {
		return nil
	}

	if err := w.service.Reload(ctx, ev.DatasetID); err != nil {
		slog.Error("failed to reload swapped dataset",
			"dataset_id", ev.DatasetID,
			"origin", ev.Origin,
			"error", err,
		)
		return err
	}

	slog.Info("followed dataset swap",
		"dataset_id", ev.DatasetID,
		"origin", ev.Origin,
	)
	return nil
}

func (w *Worker) unsubscribeAll() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
}

// Stop gracefully stops the worker and waits for in-flight jobs.
func (w *Worker) Stop() error {
	w.cancel()
	w.unsubscribeAll()
	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
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
