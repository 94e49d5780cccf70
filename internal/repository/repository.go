// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

var (
	// ErrNotFound wraps domain.ErrNotFound so callers may test for either.
	ErrNotFound     = fmt.Errorf("record %w", domain.ErrNotFound)
	ErrInvalidInput = fmt.Errorf("repository: %w", domain.ErrInvalidInput)
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// pingTimeout bounds the reachability check made when a store is opened.
const pingTimeout = 10 * time.Second

// New opens the configured store, sizes its pool and applies the schema.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidInput, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return repo, nil
}

// connect opens driverName and checks the server answers. target names the
// store in logs and errors and must not carry credentials.
func connect(driverName, dsn, target string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store %s: %w", driverName, target, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reach %s store %s: %w", driverName, target, err)
	}
	slog.Info("repository opened", "driver", driverName, "target", target)
	return db, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset stores a dataset and its summary in one transaction. Saving an
// existing id replaces the stored rows.
func (r *SQLRepository) SaveDataset(ctx context.Context, rec *domain.DatasetRecord, ds *domain.Dataset) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}
	if ds == nil {
		return fmt.Errorf("%w: dataset is required", ErrInvalidInput)
	}

	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.deleteDataset(ctx, tx, rec.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO datasets (id, seed, created_at, summary) VALUES (?, ?, ?, ?)
	`), rec.ID, rec.Seed, rec.CreatedAt.UTC(), string(summary)); err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO companies (dataset_id, ordinal, id, name, registration_year, industry_type, address, fraud_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(ds.Companies), func(i int) []any {
		c := ds.Companies[i]
		return []any{rec.ID, i, c.ID, c.Name, c.RegistrationYear, c.IndustryType, c.Address, c.FraudLabel}
	})
	if err != nil {
		return fmt.Errorf("failed to insert companies: %w", err)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO directors (dataset_id, ordinal, id, name, age, fraud_label) VALUES (?, ?, ?, ?, ?, ?)
	`, len(ds.Directors), func(i int) []any {
		d := ds.Directors[i]
		return []any{rec.ID, i, d.ID, d.Name, d.Age, d.FraudLabel}
	})
	if err != nil {
		return fmt.Errorf("failed to insert directors: %w", err)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO tenders (dataset_id, ordinal, id, department_id, contract_value, year, winning_company_id, fraud_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(ds.Tenders), func(i int) []any {
		t := ds.Tenders[i]
		return []any{rec.ID, i, t.ID, t.DepartmentID, t.ContractValue, t.Year, t.WinningCompanyID, t.FraudLabel}
	})
	if err != nil {
		return fmt.Errorf("failed to insert tenders: %w", err)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO departments (dataset_id, ordinal, id, name, location) VALUES (?, ?, ?, ?, ?)
	`, len(ds.Departments), func(i int) []any {
		d := ds.Departments[i]
		return []any{rec.ID, i, d.ID, d.Name, d.Location}
	})
	if err != nil {
		return fmt.Errorf("failed to insert departments: %w", err)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO relationships (dataset_id, ordinal, source_id, target_id, relationship_type) VALUES (?, ?, ?, ?, ?)
	`, len(ds.Relationships), func(i int) []any {
		rel := ds.Relationships[i]
		return []any{rec.ID, i, rel.SourceID, rel.TargetID, string(rel.Type)}
	})
	if err != nil {
		return fmt.Errorf("failed to insert relationships: %w", err)
	}

	return tx.Commit()
}

// insertRows executes one prepared insert per row.
func (r *SQLRepository) insertRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) deleteDataset(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range entityTables {
		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM "+table+" WHERE dataset_id = ?"), id); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	_, err := tx.ExecContext(ctx, r.rebind("DELETE FROM datasets WHERE id = ?"), id)
	return err
}

// GetDataset loads a stored dataset in creation order.
func (r *SQLRepository) GetDataset(ctx context.Context, id string) (*domain.DatasetRecord, *domain.Dataset, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, seed, created_at, summary FROM datasets WHERE id = ?
	`), id))
	if err != nil {
		return nil, nil, err
	}

	ds, err := r.loadDataset(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, ds, nil
}

// LatestDataset loads the most recently created dataset.
func (r *SQLRepository) LatestDataset(ctx context.Context) (*domain.DatasetRecord, *domain.Dataset, error) {
	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, `
		SELECT id, seed, created_at, summary FROM datasets
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`))
	if err != nil {
		return nil, nil, err
	}

	ds, err := r.loadDataset(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, ds, nil
}

// ListDatasets returns stored dataset records, newest first.
func (r *SQLRepository) ListDatasets(ctx context.Context, limit int) ([]*domain.DatasetRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, seed, created_at, summary FROM datasets
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DatasetRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanRecord(row scanner) (*domain.DatasetRecord, error) {
	var rec domain.DatasetRecord
	var summary string

	err := row.Scan(&rec.ID, &rec.Seed, &rec.CreatedAt, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(summary), &rec.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary of dataset %s: %w", rec.ID, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (r *SQLRepository) loadDataset(ctx context.Context, rec *domain.DatasetRecord) (*domain.Dataset, error) {
	ds := &domain.Dataset{Seed: rec.Seed}

	err := r.queryRows(ctx, "SELECT id, name, registration_year, industry_type, address, fraud_label FROM companies", rec.ID,
		func(s scanner) error {
			var c domain.Company
			if err := s.Scan(&c.ID, &c.Name, &c.RegistrationYear, &c.IndustryType, &c.Address, &c.FraudLabel); err != nil {
				return err
			}
			ds.Companies = append(ds.Companies, c)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}

	err = r.queryRows(ctx, "SELECT id, name, age, fraud_label FROM directors", rec.ID,
		func(s scanner) error {
			var d domain.Director
			if err := s.Scan(&d.ID, &d.Name, &d.Age, &d.FraudLabel); err != nil {
				return err
			}
			ds.Directors = append(ds.Directors, d)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load directors: %w", err)
	}

	err = r.queryRows(ctx, "SELECT id, department_id, contract_value, year, winning_company_id, fraud_label FROM tenders", rec.ID,
		func(s scanner) error {
			var t domain.Tender
			if err := s.Scan(&t.ID, &t.DepartmentID, &t.ContractValue, &t.Year, &t.WinningCompanyID, &t.FraudLabel); err != nil {
				return err
			}
			ds.Tenders = append(ds.Tenders, t)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load tenders: %w", err)
	}

	err = r.queryRows(ctx, "SELECT id, name, location FROM departments", rec.ID,
		func(s scanner) error {
			var d domain.Department
			if err := s.Scan(&d.ID, &d.Name, &d.Location); err != nil {
				return err
			}
			ds.Departments = append(ds.Departments, d)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load departments: %w", err)
	}

	err = r.queryRows(ctx, "SELECT source_id, target_id, relationship_type FROM relationships", rec.ID,
		func(s scanner) error {
			var rel domain.Relationship
			var typ string
			if err := s.Scan(&rel.SourceID, &rel.TargetID, &typ); err != nil {
				return err
			}
			rel.Type = domain.RelationshipType(typ)
			ds.Relationships = append(ds.Relationships, rel)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}

	return ds, nil
}

// queryRows runs selectFrom for one dataset in ordinal order.
func (r *SQLRepository) queryRows(ctx context.Context, selectFrom, datasetID string, scan func(scanner) error) error {
	rows, err := r.db.QueryContext(ctx, r.rebind(selectFrom+" WHERE dataset_id = ? ORDER BY ordinal"), datasetID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveVerdicts replaces the verdicts stored for a dataset.
func (r *SQLRepository) SaveVerdicts(ctx context.Context, datasetID string, verdicts []domain.Verdict) error {
	if datasetID == "" {
		return fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}
	if err := r.datasetExists(ctx, datasetID); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM risk_scores WHERE dataset_id = ?"), datasetID); err != nil {
		return err
	}

	payloads := make([]string, len(verdicts))
	for i := range verdicts {
		data, err := json.Marshal(verdicts[i])
		if err != nil {
			return fmt.Errorf("failed to encode verdict %s: %w", verdicts[i].CompanyID, err)
		}
		payloads[i] = string(data)
	}

	err = r.insertRows(ctx, tx, `
		INSERT INTO risk_scores (dataset_id, ordinal, company_id, risk_score, risk_category, verdict)
		VALUES (?, ?, ?, ?, ?, ?)
	`, len(verdicts), func(i int) []any {
		v := verdicts[i]
		return []any{datasetID, i, v.CompanyID, v.RiskScore, string(v.Category), payloads[i]}
	})
	if err != nil {
		return fmt.Errorf("failed to insert verdicts: %w", err)
	}

	return tx.Commit()
}

// ListVerdicts returns the verdicts of a dataset in company order.
func (r *SQLRepository) ListVerdicts(ctx context.Context, datasetID string) ([]domain.Verdict, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}
	if err := r.datasetExists(ctx, datasetID); err != nil {
		return nil, err
	}

	verdicts := []domain.Verdict{}
	err := r.queryRows(ctx, "SELECT verdict FROM risk_scores", datasetID, func(s scanner) error {
		var payload string
		if err := s.Scan(&payload); err != nil {
			return err
		}
		var v domain.Verdict
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return fmt.Errorf("failed to parse verdict: %w", err)
		}
		verdicts = append(verdicts, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (r *SQLRepository) datasetExists(ctx context.Context, id string) error {
	var n int
	err := r.db.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM datasets WHERE id = ?"), id).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: dataset %s", ErrNotFound, id)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
