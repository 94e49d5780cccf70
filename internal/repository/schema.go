package repository

// Schema definitions for the TenderWatch database.
// Compatible with both SQLite and PostgreSQL.

const schemaDatasets = `
CREATE TABLE IF NOT EXISTS datasets (
    id TEXT PRIMARY KEY,
    seed BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    summary TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_datasets_created ON datasets(created_at);
`

// Entity tables keep the creation order in ordinal so a reloaded dataset
// rebuilds the exact same graph.
const schemaEntities = `
CREATE TABLE IF NOT EXISTS companies (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    registration_year INTEGER NOT NULL,
    industry_type TEXT NOT NULL,
    address TEXT NOT NULL,
    fraud_label INTEGER NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE TABLE IF NOT EXISTS directors (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    age INTEGER NOT NULL,
    fraud_label INTEGER NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE TABLE IF NOT EXISTS tenders (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    id TEXT NOT NULL,
    department_id TEXT NOT NULL,
    contract_value BIGINT NOT NULL,
    year INTEGER NOT NULL,
    winning_company_id TEXT NOT NULL,
    fraud_label INTEGER NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE TABLE IF NOT EXISTS departments (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    location TEXT NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE TABLE IF NOT EXISTS relationships (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    relationship_type TEXT NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(dataset_id, relationship_type);
`

const schemaRiskScores = `
CREATE TABLE IF NOT EXISTS risk_scores (
    dataset_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    company_id TEXT NOT NULL,
    risk_score REAL NOT NULL,
    risk_category TEXT NOT NULL,
    verdict TEXT NOT NULL,
    PRIMARY KEY (dataset_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_risk_scores_category ON risk_scores(dataset_id, risk_category);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDatasets,
		schemaEntities,
		schemaRiskScores,
	}
}

// entityTables lists the tables holding one dataset's rows, in delete order.
var entityTables = []string{"risk_scores", "relationships", "departments", "tenders", "directors", "companies"}
