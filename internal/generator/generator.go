// Package generator builds the synthetic procurement graph: a baseline
// population, baseline relationships, and six injected fraud topologies.
// Output is a pure function of the configuration, seed included.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Result is a generated dataset plus the footprints of every injected
// pattern instance.
type Result struct {
	Dataset    *domain.Dataset
	Footprints []Footprint
	Summary    domain.Summary
}

type builder struct {
	cfg domain.GeneratorConfig
	rng *rand.Rand

	companies   []domain.Company
	directors   []domain.Director
	tenders     []domain.Tender
	departments []domain.Department

	edges   []edge
	edgeSet map[edgeKey]int

	directorsOf [][]int // company -> directors
	companiesOf [][]int // director -> companies
	biddersOf   [][]int // tender -> companies
	winner      []int   // tender -> company, -1 when none

	usedCompany  []bool
	usedDirector []bool
	usedTender   []bool

	footprints []Footprint
}

// NormalizeConfig fills zero values from the defaults and rejects
// dimensions the generator cannot satisfy.
func NormalizeConfig(cfg domain.GeneratorConfig) (domain.GeneratorConfig, error) {
	def := domain.DefaultGeneratorConfig()
	if cfg.Companies == 0 {
		cfg.Companies = def.Companies
	}
	if cfg.Directors == 0 {
		cfg.Directors = def.Directors
	}
	if cfg.Tenders == 0 {
		cfg.Tenders = def.Tenders
	}
	if cfg.Departments == 0 {
		cfg.Departments = def.Departments
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.FraudCompanies == 0 {
		cfg.FraudCompanies = def.FraudCompanies * cfg.Companies / def.Companies
	}
	if cfg.FraudDirectors == 0 {
		cfg.FraudDirectors = def.FraudDirectors * cfg.Directors / def.Directors
	}
	if cfg.FraudTenders == 0 {
		cfg.FraudTenders = def.FraudTenders * cfg.Tenders / def.Tenders
	}

	switch {
	case cfg.Companies < 0 || cfg.Directors < 0 || cfg.Tenders < 0 || cfg.Departments < 0:
		return cfg, fmt.Errorf("%w: entity counts must be positive", domain.ErrInvalidDataset)
	case cfg.MaxRetries < 0:
		return cfg, fmt.Errorf("%w: maxRetries must be positive", domain.ErrInvalidDataset)
	case cfg.FraudCompanies < 0 || cfg.FraudDirectors < 0 || cfg.FraudTenders < 0:
		return cfg, fmt.Errorf("%w: fraud budgets must be positive", domain.ErrInvalidDataset)
	case cfg.Directors > cfg.Companies*maxBaselineDirectors:
		return cfg, fmt.Errorf("%w: %d directors cannot each sit on one of %d boards",
			domain.ErrInvalidDataset, cfg.Directors, cfg.Companies)
	case cfg.Companies > 10_000 || cfg.Directors > 10_000 || cfg.Tenders > 10_000:
		return cfg, fmt.Errorf("%w: identifiers are limited to four digits", domain.ErrInvalidDataset)
	case cfg.Departments > 100:
		return cfg, fmt.Errorf("%w: department identifiers are limited to two digits", domain.ErrInvalidDataset)
	}
	return cfg, nil
}

// Generate runs the pipeline: entity pool, relationship fabric, pattern
// injection, validation. Any error aborts the run and no dataset is returned.
func Generate(ctx context.Context, cfg domain.GeneratorConfig) (*Result, error) {
	cfg, err := NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	b := &builder{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		edgeSet: make(map[edgeKey]int),
	}

	if err := b.buildPool(); err != nil {
		return nil, fmt.Errorf("entity pool: %w", err)
	}
	slog.Debug("entity pool built",
		"companies", len(b.companies),
		"directors", len(b.directors),
		"tenders", len(b.tenders),
		"departments", len(b.departments),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.buildFabric()
	slog.Debug("relationship fabric built", "relationships", len(b.edges))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := b.injectPatterns(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds := b.freeze()
	if err := Validate(ds); err != nil {
		return nil, err
	}

	res := &Result{
		Dataset:    ds,
		Footprints: b.footprints,
		Summary:    domain.Summarize(ds),
	}

	slog.Info("dataset generated",
		"seed", cfg.Seed,
		"companies", res.Summary.Companies,
		"fraud_companies", res.Summary.FraudCompanies,
		"directors", res.Summary.Directors,
		"fraud_directors", res.Summary.FraudDirectors,
		"tenders", res.Summary.Tenders,
		"fraud_tenders", res.Summary.FraudTenders,
		"relationships", res.Summary.Relationships,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// freeze labels the footprint union and emits the live edges in creation order.
func (b *builder) freeze() *domain.Dataset {
	for _, fp := range b.footprints {
		for _, id := range fp.Companies {
			_, n, _ := domain.ParseID(id)
			b.companies[n].FraudLabel = 1
		}
		for _, id := range fp.Directors {
			_, n, _ := domain.ParseID(id)
			b.directors[n].FraudLabel = 1
		}
		for _, id := range fp.Tenders {
			_, n, _ := domain.ParseID(id)
			b.tenders[n].FraudLabel = 1
		}
	}

	rels := make([]domain.Relationship, 0, len(b.edges))
	for _, e := range b.edges {
		if e.removed {
			continue
		}
		rels = append(rels, domain.Relationship{
			SourceID: b.entityID(e.typ, true, e.src),
			TargetID: b.entityID(e.typ, false, e.dst),
			Type:     e.typ,
		})
	}

	return &domain.Dataset{
		Seed:          b.cfg.Seed,
		Companies:     b.companies,
		Directors:     b.directors,
		Tenders:       b.tenders,
		Departments:   b.departments,
		Relationships: rels,
	}
}

func (b *builder) entityID(typ domain.RelationshipType, source bool, n int) string {
	src, dst, _ := typ.Endpoints()
	kind := dst
	if source {
		kind = src
	}
	switch kind {
	case domain.KindCompany:
		return b.companies[n].ID
	case domain.KindDirector:
		return b.directors[n].ID
	case domain.KindTender:
		return b.tenders[n].ID
	default:
		return b.departments[n].ID
	}
}

// LabeledIDs returns the union of all footprints per entity kind.
func LabeledIDs(footprints []Footprint) map[domain.EntityKind]map[string]bool {
	out := map[domain.EntityKind]map[string]bool{
		domain.KindCompany:  {},
		domain.KindDirector: {},
		domain.KindTender:   {},
	}
	for _, fp := range footprints {
		for _, id := range fp.Companies {
			out[domain.KindCompany][id] = true
		}
		for _, id := range fp.Directors {
			out[domain.KindDirector][id] = true
		}
		for _, id := range fp.Tenders {
			out[domain.KindTender][id] = true
		}
	}
	return out
}
