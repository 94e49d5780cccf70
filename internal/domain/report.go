package domain

// DashboardStats is the dashboard overview of the installed dataset.
type DashboardStats struct {
	DatasetID          string               `json:"dataset_id"`
	TotalEntities      int                  `json:"total_entities"`
	TotalCompanies     int                  `json:"total_companies"`
	TotalDirectors     int                  `json:"total_directors"`
	TotalTenders       int                  `json:"total_tenders"`
	TotalDepartments   int                  `json:"total_departments"`
	HighRiskCount      int                  `json:"high_risk_count"`
	FraudClusterCount  int                  `json:"fraud_cluster_count"`
	TotalContractValue int64                `json:"total_contract_value"`
	RiskDistribution   map[RiskCategory]int `json:"risk_distribution"`
}

// CompanyProfile is one row of the company list.
type CompanyProfile struct {
	CompanyID        string       `json:"company_id"`
	Name             string       `json:"name"`
	RegistrationYear int          `json:"registration_year"`
	IndustryType     string       `json:"industry_type"`
	Address          string       `json:"address"`
	RiskScore        float64      `json:"risk_score"`
	RiskCategory     RiskCategory `json:"risk_category"`
	Confidence       float64      `json:"confidence_score"`
	FraudLabel       int          `json:"fraud_label"`
}

// TenderRecord is one entry of a company's tender history.
type TenderRecord struct {
	TenderID      string `json:"tender_id"`
	DepartmentID  string `json:"department_id"`
	ContractValue int64  `json:"contract_value"`
	Year          int    `json:"year"`
	Won           bool   `json:"won"`
}

// ConnectedEntity is a direct graph neighbor of an entity.
type ConnectedEntity struct {
	EntityID         string           `json:"entity_id"`
	EntityType       EntityKind       `json:"entity_type"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Outgoing         bool             `json:"outgoing"`
}

// CompanyDetail is the full profile of one company.
type CompanyDetail struct {
	EntityID          string               `json:"entity_id"`
	EntityType        EntityKind           `json:"entity_type"`
	Company           Company              `json:"company"`
	RiskScore         float64              `json:"risk_score"`
	RiskCategory      RiskCategory         `json:"risk_category"`
	Confidence        float64              `json:"confidence_score"`
	Factors           FactorScores         `json:"factors"`
	Contributions     []FactorContribution `json:"contributions"`
	Escalated         bool                 `json:"escalated,omitempty"`
	RiskIndicators    []RiskIndicator      `json:"risk_indicators"`
	TenderHistory     []TenderRecord       `json:"tender_history"`
	ConnectedEntities []ConnectedEntity    `json:"connected_entities"`
	ClusterID         int                  `json:"cluster_id"`
}

// NetworkNode is a node of a rendered subgraph.
type NetworkNode struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Type         EntityKind   `json:"type"`
	Depth        int          `json:"depth"`
	RiskScore    float64      `json:"risk_score"`
	RiskCategory RiskCategory `json:"risk_category,omitempty"`
}

// NetworkEdge is an edge of a rendered subgraph.
type NetworkEdge struct {
	Source           string           `json:"source"`
	Target           string           `json:"target"`
	RelationshipType RelationshipType `json:"relationship_type"`
}

// NetworkGraph is the induced subgraph returned by a bounded traversal.
type NetworkGraph struct {
	Seeds     []string      `json:"seeds"`
	Depth     int           `json:"depth"`
	Truncated bool          `json:"truncated"`
	Nodes     []NetworkNode `json:"nodes"`
	Edges     []NetworkEdge `json:"edges"`
}

// InvestigationSummary is the explained verdict for one company.
type InvestigationSummary struct {
	EntityID                    string          `json:"entity_id"`
	EntityType                  EntityKind      `json:"entity_type"`
	RiskScore                   float64         `json:"risk_score"`
	RiskCategory                RiskCategory    `json:"risk_category"`
	Confidence                  float64         `json:"confidence_score"`
	KeyFindings                 []string        `json:"key_findings"`
	RiskIndicators              []RiskIndicator `json:"risk_indicators"`
	ConnectedSuspiciousEntities []string        `json:"connected_suspicious_entities"`
	Recommendation              string          `json:"recommendation"`
}

// FraudCluster is a suspicious community of companies.
type FraudCluster struct {
	ClusterID        int      `json:"cluster_id"`
	Size             int      `json:"size"`
	Members          []string `json:"members"`
	AvgContractValue float64  `json:"avg_contract_value"`
	AvgRiskScore     float64  `json:"avg_risk_score"`
	HighRiskCount    int      `json:"high_risk_count"`
	LabeledShare     float64  `json:"labeled_share"`
}
