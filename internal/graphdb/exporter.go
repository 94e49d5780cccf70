package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

const defaultBatchSize = 500

// Uniqueness constraints, one per node label.
var constraints = []string{
	"CREATE CONSTRAINT company_id IF NOT EXISTS FOR (c:Company) REQUIRE c.company_id IS UNIQUE",
	"CREATE CONSTRAINT director_id IF NOT EXISTS FOR (d:Director) REQUIRE d.director_id IS UNIQUE",
	"CREATE CONSTRAINT tender_id IF NOT EXISTS FOR (t:Tender) REQUIRE t.tender_id IS UNIQUE",
	"CREATE CONSTRAINT department_id IF NOT EXISTS FOR (d:Department) REQUIRE d.department_id IS UNIQUE",
}

const clearStatement = "MATCH (n) DETACH DELETE n"

// keyProperty is the unique id property of each label.
var keyProperty = map[domain.EntityKind]string{
	domain.KindCompany:    "company_id",
	domain.KindDirector:   "director_id",
	domain.KindTender:     "tender_id",
	domain.KindDepartment: "department_id",
}

// Exporter writes a dataset as labeled nodes and typed relationships.
type Exporter struct {
	client    Client
	batchSize int
	clear     bool
}

// NewExporter creates an exporter. With clear set every export starts from
// an empty database.
func NewExporter(client Client, batchSize int, clear bool) *Exporter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Exporter{client: client, batchSize: batchSize, clear: clear}
}

// Export writes ds. Nodes are merged on their id property, so exporting the
// same dataset twice leaves one copy.
func (e *Exporter) Export(ctx context.Context, ds *domain.Dataset) error {
	start := time.Now()

	if e.clear {
		if err := e.client.ExecuteWrite(ctx, clearStatement, nil); err != nil {
			return fmt.Errorf("clear graph: %w", err)
		}
	}
	for _, c := range constraints {
		if err := e.client.ExecuteWrite(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	companies := make([]any, len(ds.Companies))
	for i, c := range ds.Companies {
		companies[i] = map[string]any{
			"company_id":        c.ID,
			"name":              c.Name,
			"registration_year": c.RegistrationYear,
			"industry_type":     c.IndustryType,
			"address":           c.Address,
			"fraud_label":       c.FraudLabel,
		}
	}
	directors := make([]any, len(ds.Directors))
	for i, d := range ds.Directors {
		directors[i] = map[string]any{
			"director_id": d.ID,
			"name":        d.Name,
			"age":         d.Age,
			"fraud_label": d.FraudLabel,
		}
	}
	tenders := make([]any, len(ds.Tenders))
	for i, t := range ds.Tenders {
		tenders[i] = map[string]any{
			"tender_id":          t.ID,
			"department_id":      t.DepartmentID,
			"contract_value":     t.ContractValue,
			"year":               t.Year,
			"winning_company_id": t.WinningCompanyID,
			"fraud_label":        t.FraudLabel,
		}
	}
	departments := make([]any, len(ds.Departments))
	for i, d := range ds.Departments {
		departments[i] = map[string]any{
			"department_id": d.ID,
			"name":          d.Name,
			"location":      d.Location,
		}
	}

	nodes := []struct {
		kind domain.EntityKind
		rows []any
	}{
		{domain.KindCompany, companies},
		{domain.KindDirector, directors},
		{domain.KindTender, tenders},
		{domain.KindDepartment, departments},
	}
	for _, n := range nodes {
		if err := e.batched(ctx, nodeStatement(n.kind), n.rows); err != nil {
			return fmt.Errorf("write %s nodes: %w", n.kind, err)
		}
	}

	byType := make(map[domain.RelationshipType][]any, len(domain.RelationshipTypes))
	for _, r := range ds.Relationships {
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"source": r.SourceID,
			"target": r.TargetID,
		})
	}
	for _, typ := range domain.RelationshipTypes {
		stmt, err := relationshipStatement(typ)
		if err != nil {
			return err
		}
		if err := e.batched(ctx, stmt, byType[typ]); err != nil {
			return fmt.Errorf("write %s relationships: %w", typ, err)
		}
	}

	slog.Info("graph exported",
		"companies", len(ds.Companies),
		"directors", len(ds.Directors),
		"tenders", len(ds.Tenders),
		"departments", len(ds.Departments),
		"relationships", len(ds.Relationships),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (e *Exporter) batched(ctx context.Context, stmt string, rows []any) error {
	for lo := 0; lo < len(rows); lo += e.batchSize {
		hi := min(lo+e.batchSize, len(rows))
		if err := e.client.ExecuteWrite(ctx, stmt, map[string]any{"rows": rows[lo:hi]}); err != nil {
			return err
		}
	}
	return nil
}

func nodeStatement(kind domain.EntityKind) string {
	key := keyProperty[kind]
	return fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {%s: row.%s}) SET n += row", kind, key, key)
}

func relationshipStatement(typ domain.RelationshipType) (string, error) {
	src, dst, ok := typ.Endpoints()
	if !ok {
		return "", fmt.Errorf("%w: unknown relationship type %q", domain.ErrInvalidDataset, typ)
	}
	return fmt.Sprintf(
		"UNWIND $rows AS row MATCH (s:%s {%s: row.source}) MATCH (t:%s {%s: row.target}) MERGE (s)-[:%s]->(t)",
		src, keyProperty[src], dst, keyProperty[dst], typ,
	), nil
}
