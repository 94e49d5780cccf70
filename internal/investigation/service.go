package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/generator"
	"github.com/opensource-finance/tenderwatch/internal/rules"
	"github.com/opensource-finance/tenderwatch/internal/scoring"
	"github.com/opensource-finance/tenderwatch/internal/telemetry"
)

var tracer = otel.Tracer("tenderwatch-investigation")

// Exporter mirrors an installed dataset into an external graph store.
type Exporter interface {
	Export(ctx context.Context, ds *domain.Dataset) error
}

// Deps are the optional backends of a Service. Any of them may be nil.
type Deps struct {
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus
	Exporter Exporter
	Metrics  *telemetry.Metrics
}

// Service answers queries against the current snapshot. Readers load the
// snapshot pointer without locking; installs build the next snapshot in
// isolation and swap it in under swapMu.
type Service struct {
	generatorCfg domain.GeneratorConfig
	scoringCfg   domain.ScoringConfig
	query        domain.QueryConfig
	scorer       *scoring.Scorer
	engine       *rules.Engine
	deps         Deps
	nodeID       string

	current  atomic.Pointer[Snapshot]
	swapMu   sync.Mutex
	reports  singleflight.Group
	rulesGen atomic.Int64
}

// NewService creates a service with no snapshot installed.
func NewService(cfg *domain.Config, engine *rules.Engine, deps Deps) *Service {
	q := cfg.Query
	def := domain.DefaultQueryConfig()
	if q.MaxDepth <= 0 {
		q.MaxDepth = def.MaxDepth
	}
	if q.DefaultDepth <= 0 || q.DefaultDepth > q.MaxDepth {
		q.DefaultDepth = min(def.DefaultDepth, q.MaxDepth)
	}
	if q.MaxNodes <= 0 {
		q.MaxNodes = def.MaxNodes
	}
	if q.DefaultSeeds <= 0 {
		q.DefaultSeeds = def.DefaultSeeds
	}
	if q.MaxLimit <= 0 {
		q.MaxLimit = def.MaxLimit
	}
	if q.DefaultLimit <= 0 || q.DefaultLimit > q.MaxLimit {
		q.DefaultLimit = min(def.DefaultLimit, q.MaxLimit)
	}
	if q.MinClusterSize <= 0 {
		q.MinClusterSize = def.MinClusterSize
	}
	if q.TenderHistoryCap <= 0 {
		q.TenderHistoryCap = def.TenderHistoryCap
	}
	if q.ClusterResolution <= 0 {
		q.ClusterResolution = def.ClusterResolution
	}

	return &Service{
		generatorCfg: cfg.Generator,
		scoringCfg:   cfg.Scoring,
		query:        q,
		scorer:       scoring.New(cfg.Scoring),
		engine:       engine,
		deps:         deps,
		nodeID:       uuid.New().String(),
	}
}

// NodeID identifies this process in swap events.
func (s *Service) NodeID() string { return s.nodeID }

// Snapshot returns the installed snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrNoSnapshot
	}
	return snap, nil
}

// Ready reports whether a snapshot is installed.
func (s *Service) Ready() bool { return s.current.Load() != nil }

// Install builds a snapshot for ds and makes it current.
func (s *Service) Install(ctx context.Context, rec domain.DatasetRecord, ds *domain.Dataset, stored []domain.Verdict) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "snapshot.build", trace.WithAttributes(
		attribute.String("dataset.id", rec.ID),
		attribute.Int64("dataset.seed", rec.Seed),
	))
	defer span.End()

	start := time.Now()
	snap, err := BuildSnapshot(ctx, rec, ds, stored, s.scorer, s.engine, s.query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	build := time.Since(start)

	s.swapMu.Lock()
	s.current.Store(snap)
	s.swapMu.Unlock()

	s.deps.Metrics.SnapshotInstalled(rec.Summary, snap.stats.RiskDistribution, len(snap.Clusters), build)
	slog.Info("snapshot installed",
		"dataset_id", rec.ID,
		"seed", rec.Seed,
		"companies", snap.stats.TotalCompanies,
		"high_risk", snap.stats.HighRiskCount,
		"fraud_clusters", snap.stats.FraudClusterCount,
		"duration_ms", build.Milliseconds(),
	)

	if s.deps.Exporter != nil {
		if err := s.deps.Exporter.Export(ctx, ds); err != nil {
			slog.Error("graph export failed", "dataset_id", rec.ID, "error", err)
		}
	}
	return snap, nil
}

// Regenerate generates a dataset from seed, stores it, installs it and
// announces the swap. Nothing is stored or swapped when any step fails.
func (s *Service) Regenerate(ctx context.Context, seed int64, jobID string) (rec *domain.DatasetRecord, err error) {
	defer func() { s.deps.Metrics.Regeneration(err) }()

	cfg := s.generatorCfg
	cfg.Seed = seed
	res, err := generator.Generate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	r := domain.DatasetRecord{
		ID:        uuid.New().String(),
		Seed:      seed,
		CreatedAt: time.Now().UTC(),
		Summary:   res.Summary,
	}

	ctx, span := tracer.Start(ctx, "snapshot.regenerate", trace.WithAttributes(attribute.String("dataset.id", r.ID)))
	defer span.End()

	start := time.Now()
	snap, err := BuildSnapshot(ctx, r, res.Dataset, nil, s.scorer, s.engine, s.query)
	if err != nil {
		return nil, err
	}

	if s.deps.Repo != nil {
		if err := s.deps.Repo.SaveDataset(ctx, &r, res.Dataset); err != nil {
			return nil, fmt.Errorf("failed to store dataset: %w", err)
		}
		if err := s.deps.Repo.SaveVerdicts(ctx, r.ID, snap.Verdicts); err != nil {
			return nil, fmt.Errorf("failed to store verdicts: %w", err)
		}
	}

	s.swapMu.Lock()
	s.current.Store(snap)
	s.swapMu.Unlock()

	s.deps.Metrics.SnapshotInstalled(r.Summary, snap.stats.RiskDistribution, len(snap.Clusters), time.Since(start))
	slog.Info("dataset regenerated",
		"dataset_id", r.ID,
		"seed", seed,
		"job_id", jobID,
		"high_risk", snap.stats.HighRiskCount,
		"fraud_clusters", snap.stats.FraudClusterCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if s.deps.Exporter != nil {
		if err := s.deps.Exporter.Export(ctx, res.Dataset); err != nil {
			slog.Error("graph export failed", "dataset_id", r.ID, "error", err)
		}
	}
	s.announce(ctx, domain.SwapEvent{JobID: jobID, DatasetID: r.ID, Seed: seed, Origin: s.nodeID})
	return &r, nil
}

func (s *Service) announce(ctx context.Context, ev domain.SwapEvent) {
	if s.deps.Bus == nil {
		return
	}
	payload, _ := json.Marshal(ev)
	if err := s.deps.Bus.Publish(ctx, domain.TopicSwapped, payload); err != nil {
		slog.Error("failed to publish swap event", "dataset_id", ev.DatasetID, "error", err)
	}
}

// Reload installs a stored dataset by id, reusing its stored verdicts.
// Reloading the installed dataset is a no-op.
func (s *Service) Reload(ctx context.Context, datasetID string) error {
	if snap := s.current.Load(); snap != nil && snap.Record.ID == datasetID {
		return nil
	}
	if s.deps.Repo == nil {
		return fmt.Errorf("%w: no repository configured", domain.ErrInvalidInput)
	}

	rec, ds, err := s.deps.Repo.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	return s.installStored(ctx, rec, ds)
}

func (s *Service) installStored(ctx context.Context, rec *domain.DatasetRecord, ds *domain.Dataset) error {
	verdicts, err := s.deps.Repo.ListVerdicts(ctx, rec.ID)
	if err != nil {
		slog.Warn("stored verdicts unavailable, rescoring", "dataset_id", rec.ID, "error", err)
		verdicts = nil
	}
	_, err = s.Install(ctx, *rec, ds, verdicts)
	return err
}

// Bootstrap installs the most recent stored dataset, or generates one from
// the configured seed when the store is empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.deps.Repo != nil {
		rec, ds, err := s.deps.Repo.LatestDataset(ctx)
		switch {
		case err == nil:
			return s.installStored(ctx, rec, ds)
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("failed to load latest dataset: %w", err)
		}
	}
	_, err := s.Regenerate(ctx, s.generatorCfg.Seed, "")
	return err
}

// Rules returns the loaded indicator rules.
func (s *Service) Rules() []domain.IndicatorRule {
	return s.engine.Rules()
}

// ReloadRules re-reads the configured indicator rules and re-evaluates the
// installed snapshot against them. Verdicts are kept; only fired indicators
// change. The snapshot gets a fresh report cache namespace. When any rule
// is invalid the previous rules stay loaded.
func (s *Service) ReloadRules(ctx context.Context) (int, error) {
	loaded, err := rules.Source(s.scoringCfg)
	if err != nil {
		return 0, err
	}
	if err := s.engine.ValidateRules(loaded); err != nil {
		return 0, err
	}
	if err := s.engine.ReloadRules(loaded); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	count := s.engine.RulesCount()

	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	snap := s.current.Load()
	if snap == nil {
		slog.Info("indicator rules reloaded", "rules", count)
		return count, nil
	}
	next, err := BuildSnapshot(ctx, snap.Record, snap.Index.Dataset(), snap.Verdicts, s.scorer, s.engine, s.query)
	if err != nil {
		return 0, err
	}
	next.namespace = fmt.Sprintf("%s/rules-%d", snap.Record.ID, s.rulesGen.Add(1))
	s.current.Store(next)

	slog.Info("indicator rules reloaded",
		"rules", count,
		"dataset_id", snap.Record.ID,
		"namespace", next.namespace,
	)
	return count, nil
}
