package graphdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

func testDataset(companies int) *domain.Dataset {
	ds := &domain.Dataset{
		Directors:   []domain.Director{{ID: "DIR_0000", Name: "Ana Silva", Age: 44}},
		Tenders:     []domain.Tender{{ID: "TEND_0000", DepartmentID: "DEPT_00", ContractValue: 100_000, Year: 2020, WinningCompanyID: "COMP_0000"}},
		Departments: []domain.Department{{ID: "DEPT_00", Name: "Health", Location: "Capital"}},
	}
	for i := 0; i < companies; i++ {
		id := fmt.Sprintf("COMP_%04d", i)
		ds.Companies = append(ds.Companies, domain.Company{ID: id, Name: "Company " + id})
		ds.Relationships = append(ds.Relationships, domain.Relationship{SourceID: "DIR_0000", TargetID: id, Type: domain.RelDirectorOf})
	}
	ds.Relationships = append(ds.Relationships,
		domain.Relationship{SourceID: "COMP_0000", TargetID: "TEND_0000", Type: domain.RelBiddedFor},
		domain.Relationship{SourceID: "COMP_0000", TargetID: "TEND_0000", Type: domain.RelWon},
		domain.Relationship{SourceID: "TEND_0000", TargetID: "DEPT_00", Type: domain.RelIssuedBy},
	)
	return ds
}

func TestExport(t *testing.T) {
	mem := NewMemoryClient()
	exp := NewExporter(mem, 2, true)

	if err := exp.Export(context.Background(), testDataset(5)); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	calls := mem.WriteCalls()
	if calls[0].Query != clearStatement {
		t.Errorf("expected the clear statement first, got %q", calls[0].Query)
	}
	for i, c := range constraints {
		if calls[i+1].Query != c {
			t.Errorf("constraint %d: got %q", i, calls[i+1].Query)
		}
	}

	count := func(prefix string) (statements, rows int) {
		for _, c := range calls {
			if strings.HasPrefix(c.Query, prefix) {
				statements++
				rows += len(c.Params["rows"].([]any))
			}
		}
		return
	}

	// 5 companies in batches of 2
	if s, r := count("UNWIND $rows AS row MERGE (n:Company {company_id: row.company_id})"); s != 3 || r != 5 {
		t.Errorf("expected 3 company batches with 5 rows, got %d batches with %d rows", s, r)
	}
	if s, r := count("UNWIND $rows AS row MERGE (n:Department"); s != 1 || r != 1 {
		t.Errorf("expected 1 department batch, got %d with %d rows", s, r)
	}
	if s, r := count("UNWIND $rows AS row MATCH (s:Director {director_id: row.source}) MATCH (t:Company {company_id: row.target}) MERGE (s)-[:DIRECTOR_OF]->(t)"); s != 3 || r != 5 {
		t.Errorf("expected 3 DIRECTOR_OF batches with 5 rows, got %d with %d", s, r)
	}
	if s, _ := count("UNWIND $rows AS row MATCH (s:Tender {tender_id: row.source}) MATCH (t:Department {department_id: row.target}) MERGE (s)-[:ISSUED_BY]->(t)"); s != 1 {
		t.Errorf("expected 1 ISSUED_BY batch, got %d", s)
	}
}

func TestExportWithoutClear(t *testing.T) {
	mem := NewMemoryClient()
	if err := NewExporter(mem, 0, false).Export(context.Background(), testDataset(1)); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	for _, c := range mem.WriteCalls() {
		if c.Query == clearStatement {
			t.Error("clear must not run when disabled")
		}
	}
}

func TestExportError(t *testing.T) {
	boom := errors.New("connection reset")
	mem := NewMemoryClient().WithError(boom)
	if err := NewExporter(mem, 10, false).Export(context.Background(), testDataset(1)); !errors.Is(err, boom) {
		t.Errorf("expected the client error, got %v", err)
	}
}

func TestRelationshipStatement(t *testing.T) {
	if _, err := relationshipStatement("OWNS"); !errors.Is(err, domain.ErrInvalidDataset) {
		t.Errorf("expected ErrInvalidDataset, got %v", err)
	}
}

func TestNewNeo4jClientRequiresURI(t *testing.T) {
	if _, err := NewNeo4jClient(context.Background(), Options{}); !errors.Is(err, ErrMissingURI) {
		t.Errorf("expected ErrMissingURI, got %v", err)
	}
}
