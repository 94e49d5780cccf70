package repository

import (
	"context"
	"errors"
	"net/url"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

func sampleDataset() *domain.Dataset {
	return &domain.Dataset{
		Seed: 42,
		Companies: []domain.Company{
			{ID: "COMP_0000", Name: "Apex Builders", RegistrationYear: 2005, IndustryType: "Construction", Address: "1 Main St, Springfield 11111"},
			{ID: "COMP_0001", Name: "Nova Systems", RegistrationYear: 2015, IndustryType: "IT Services", Address: "5 Dummy Street, Shell City 00000", FraudLabel: 1},
		},
		Directors: []domain.Director{
			{ID: "DIR_0000", Name: "Ana Silva", Age: 52, FraudLabel: 1},
		},
		Tenders: []domain.Tender{
			{ID: "TEND_0000", DepartmentID: "DEPT_00", ContractValue: 1_250_000, Year: 2021, WinningCompanyID: "COMP_0001", FraudLabel: 1},
			{ID: "TEND_0001", DepartmentID: "DEPT_00", ContractValue: 80_000, Year: 2019},
		},
		Departments: []domain.Department{
			{ID: "DEPT_00", Name: "Department of Health", Location: "Capital"},
		},
		Relationships: []domain.Relationship{
			{SourceID: "DIR_0000", TargetID: "COMP_0001", Type: domain.RelDirectorOf},
			{SourceID: "DIR_0000", TargetID: "COMP_0000", Type: domain.RelDirectorOf},
			{SourceID: "COMP_0001", TargetID: "TEND_0000", Type: domain.RelBiddedFor},
			{SourceID: "COMP_0001", TargetID: "TEND_0000", Type: domain.RelWon},
			{SourceID: "TEND_0000", TargetID: "DEPT_00", Type: domain.RelIssuedBy},
			{SourceID: "TEND_0001", TargetID: "DEPT_00", Type: domain.RelIssuedBy},
		},
	}
}

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "tenderwatch-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ds := sampleDataset()
	older := &domain.DatasetRecord{
		ID:        "ds-001",
		Seed:      ds.Seed,
		CreatedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Summary:   domain.Summarize(ds),
	}
	newer := &domain.DatasetRecord{
		ID:        "ds-002",
		Seed:      7,
		CreatedAt: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		Summary:   domain.Summarize(ds),
	}

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetDataset", func(t *testing.T) {
		if err := repo.SaveDataset(ctx, older, ds); err != nil {
			t.Fatalf("SaveDataset failed: %v", err)
		}

		rec, got, err := repo.GetDataset(ctx, older.ID)
		if err != nil {
			t.Fatalf("GetDataset failed: %v", err)
		}
		if rec.ID != older.ID || rec.Seed != older.Seed || !rec.CreatedAt.Equal(older.CreatedAt) {
			t.Errorf("unexpected record: %+v", rec)
		}
		if !reflect.DeepEqual(rec.Summary, older.Summary) {
			t.Errorf("summary mismatch:\n got  %+v\n want %+v", rec.Summary, older.Summary)
		}
		if !reflect.DeepEqual(got, ds) {
			t.Errorf("dataset did not round trip:\n got  %+v\n want %+v", got, ds)
		}
	})

	t.Run("SaveReplacesExisting", func(t *testing.T) {
		if err := repo.SaveDataset(ctx, older, ds); err != nil {
			t.Fatalf("second SaveDataset failed: %v", err)
		}
		_, got, err := repo.GetDataset(ctx, older.ID)
		if err != nil {
			t.Fatalf("GetDataset failed: %v", err)
		}
		if len(got.Relationships) != len(ds.Relationships) {
			t.Errorf("expected %d relationships, got %d", len(ds.Relationships), len(got.Relationships))
		}
	})

	t.Run("LatestDataset", func(t *testing.T) {
		if err := repo.SaveDataset(ctx, newer, ds); err != nil {
			t.Fatalf("SaveDataset failed: %v", err)
		}
		rec, got, err := repo.LatestDataset(ctx)
		if err != nil {
			t.Fatalf("LatestDataset failed: %v", err)
		}
		if rec.ID != newer.ID {
			t.Errorf("expected %s, got %s", newer.ID, rec.ID)
		}
		if got.Seed != newer.Seed {
			t.Errorf("expected seed %d, got %d", newer.Seed, got.Seed)
		}
	})

	t.Run("ListDatasets", func(t *testing.T) {
		records, err := repo.ListDatasets(ctx, 10)
		if err != nil {
			t.Fatalf("ListDatasets failed: %v", err)
		}
		if len(records) != 2 || records[0].ID != newer.ID || records[1].ID != older.ID {
			t.Errorf("expected newest first, got %+v", records)
		}

		records, _ = repo.ListDatasets(ctx, 1)
		if len(records) != 1 {
			t.Errorf("expected limit to apply, got %d", len(records))
		}
	})

	t.Run("Verdicts", func(t *testing.T) {
		verdicts := []domain.Verdict{
			{CompanyID: "COMP_0000", RiskScore: 0.12, Category: domain.RiskLow, Confidence: 0.6},
			{
				CompanyID: "COMP_0001", RiskScore: 0.7, Category: domain.RiskHigh, Confidence: 0.7,
				Escalated: true, EscalationReason: "tender pattern",
				Factors:       domain.FactorScores{TenderPattern: 0.7, Shell: 1},
				Contributions: []domain.FactorContribution{{Factor: domain.FactorShell, Score: 1, Weight: 0.25, Contribution: 0.25}},
				Evidence:      domain.Evidence{WonCount: 1, WonValue: 1_250_000},
			},
		}
		if err := repo.SaveVerdicts(ctx, older.ID, verdicts); err != nil {
			t.Fatalf("SaveVerdicts failed: %v", err)
		}
		got, err := repo.ListVerdicts(ctx, older.ID)
		if err != nil {
			t.Fatalf("ListVerdicts failed: %v", err)
		}
		if !reflect.DeepEqual(got, verdicts) {
			t.Errorf("verdicts did not round trip:\n got  %+v\n want %+v", got, verdicts)
		}

		// Replacing shrinks the stored set
		if err := repo.SaveVerdicts(ctx, older.ID, verdicts[:1]); err != nil {
			t.Fatalf("SaveVerdicts failed: %v", err)
		}
		got, _ = repo.ListVerdicts(ctx, older.ID)
		if len(got) != 1 {
			t.Errorf("expected 1 verdict after replace, got %d", len(got))
		}

		got, err = repo.ListVerdicts(ctx, newer.ID)
		if err != nil || len(got) != 0 {
			t.Errorf("expected no verdicts for %s, got %v %v", newer.ID, got, err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, _, err := repo.GetDataset(ctx, "missing"); !errors.Is(err, ErrNotFound) || !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.SaveVerdicts(ctx, "missing", nil); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.ListVerdicts(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveDataset(ctx, &domain.DatasetRecord{}, ds); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.ListVerdicts(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestLatestDatasetEmpty(t *testing.T) {
	repo := newTestRepo(t)
	if _, _, err := repo.LatestDataset(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on an empty store, got %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unsupported driver, got %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/var/lib/tenderwatch/store.db")
	if !strings.HasPrefix(dsn, "file:/var/lib/tenderwatch/store.db?") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	q, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
	if err != nil {
		t.Fatalf("dsn query does not parse: %v", err)
	}
	if !reflect.DeepEqual(q["_pragma"], sqlitePragmas) {
		t.Errorf("pragmas = %v, want %v", q["_pragma"], sqlitePragmas)
	}
}

func TestPostgresURL(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		u := postgresURL(domain.RepositoryConfig{Driver: "postgres"})
		if u.Host != "localhost:5432" || u.Path != "/tenderwatch" {
			t.Errorf("unexpected target %s%s", u.Host, u.Path)
		}
		if u.User != nil {
			t.Errorf("expected no credentials, got %v", u.User)
		}
		if got := u.Query().Get("sslmode"); got != "disable" {
			t.Errorf("sslmode = %q, want disable", got)
		}
	})

	t.Run("Credentials", func(t *testing.T) {
		u := postgresURL(domain.RepositoryConfig{
			PostgresHost:     "db.internal",
			PostgresPort:     6432,
			PostgresUser:     "audit",
			PostgresPassword: "p@ss/word",
			PostgresDB:       "tenders",
			PostgresSSLMode:  "require",
		})
		parsed, err := url.Parse(u.String())
		if err != nil {
			t.Fatalf("url does not round-trip: %v", err)
		}
		if pw, _ := parsed.User.Password(); pw != "p@ss/word" {
			t.Errorf("password = %q after round-trip", pw)
		}
		if parsed.Host != "db.internal:6432" || parsed.Query().Get("sslmode") != "require" {
			t.Errorf("unexpected url %s", u.Redacted())
		}
		if strings.Contains(u.Redacted(), "p@ss") {
			t.Errorf("redacted target leaks the password: %s", u.Redacted())
		}
	})
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
}
