package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKind identifies one of the four node types of the procurement graph.
type EntityKind string

const (
	KindCompany    EntityKind = "Company"
	KindDirector   EntityKind = "Director"
	KindTender     EntityKind = "Tender"
	KindDepartment EntityKind = "Department"
)

// ID prefixes and zero-padded widths per entity kind.
const (
	CompanyPrefix    = "COMP_"
	DirectorPrefix   = "DIR_"
	TenderPrefix     = "TEND_"
	DepartmentPrefix = "DEPT_"
)

// RelationshipType is the label of a directed edge.
type RelationshipType string

const (
	RelDirectorOf RelationshipType = "DIRECTOR_OF"
	RelBiddedFor  RelationshipType = "BIDDED_FOR"
	RelWon        RelationshipType = "WON"
	RelIssuedBy   RelationshipType = "ISSUED_BY"
)

// RelationshipTypes lists every edge type in canonical order.
var RelationshipTypes = []RelationshipType{RelDirectorOf, RelBiddedFor, RelWon, RelIssuedBy}

// Endpoints returns the source and target kinds a relationship type connects.
func (t RelationshipType) Endpoints() (EntityKind, EntityKind, bool) {
	switch t {
	case RelDirectorOf:
		return KindDirector, KindCompany, true
	case RelBiddedFor, RelWon:
		return KindCompany, KindTender, true
	case RelIssuedBy:
		return KindTender, KindDepartment, true
	}
	return "", "", false
}

// Industries is the closed set of company industry types.
var Industries = []string{
	"Construction", "IT Services", "Healthcare", "Manufacturing",
	"Transportation", "Energy", "Telecommunications", "Engineering",
	"Consulting", "Security Services", "Architecture", "Finance",
}

// Attribute bounds.
const (
	MinRegistrationYear = 1995
	MaxRegistrationYear = 2023
	MinDirectorAge      = 30
	MaxDirectorAge      = 75
	MinContractValue    = 50_000
	MaxContractValue    = 5_000_000
	MinTenderYear       = 2018
	MaxTenderYear       = 2023
)

// Company is a bidder in the procurement graph.
type Company struct {
	ID               string `json:"company_id"`
	Name             string `json:"name"`
	RegistrationYear int    `json:"registration_year"`
	IndustryType     string `json:"industry_type"`
	Address          string `json:"address"`
	FraudLabel       int    `json:"fraud_label"`
}

// Director sits on the board of one or more companies.
type Director struct {
	ID         string `json:"director_id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	FraudLabel int    `json:"fraud_label"`
}

// Tender is a public contract issued by a department.
// WinningCompanyID is empty when the tender has no winner.
type Tender struct {
	ID               string `json:"tender_id"`
	DepartmentID     string `json:"department_id"`
	ContractValue    int64  `json:"contract_value"`
	Year             int    `json:"year"`
	WinningCompanyID string `json:"winning_company_id"`
	FraudLabel       int    `json:"fraud_label"`
}

// Department issues tenders. Departments are never labeled fraudulent.
type Department struct {
	ID       string `json:"department_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	SourceID string           `json:"source_id"`
	TargetID string           `json:"target_id"`
	Type     RelationshipType `json:"relationship_type"`
}

// FormatID renders the identifier of the n-th entity of a kind.
func FormatID(kind EntityKind, n int) string {
	switch kind {
	case KindCompany:
		return fmt.Sprintf("%s%04d", CompanyPrefix, n)
	case KindDirector:
		return fmt.Sprintf("%s%04d", DirectorPrefix, n)
	case KindTender:
		return fmt.Sprintf("%s%04d", TenderPrefix, n)
	case KindDepartment:
		return fmt.Sprintf("%s%02d", DepartmentPrefix, n)
	}
	return ""
}

// ParseID validates an identifier and returns its kind and sequence number.
func ParseID(id string) (EntityKind, int, error) {
	var (
		kind   EntityKind
		prefix string
		width  int
	)
	switch {
	case strings.HasPrefix(id, CompanyPrefix):
		kind, prefix, width = KindCompany, CompanyPrefix, 4
	case strings.HasPrefix(id, DirectorPrefix):
		kind, prefix, width = KindDirector, DirectorPrefix, 4
	case strings.HasPrefix(id, TenderPrefix):
		kind, prefix, width = KindTender, TenderPrefix, 4
	case strings.HasPrefix(id, DepartmentPrefix):
		kind, prefix, width = KindDepartment, DepartmentPrefix, 2
	default:
		return "", 0, fmt.Errorf("%w: unknown id prefix %q", ErrInvalidDataset, id)
	}

	digits := id[len(prefix):]
	if len(digits) < width {
		return "", 0, fmt.Errorf("%w: id %q must carry at least %d digits", ErrInvalidDataset, id, width)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || strings.ContainsAny(digits, "+-") {
		return "", 0, fmt.Errorf("%w: malformed id %q", ErrInvalidDataset, id)
	}
	return kind, n, nil
}

// KindOf returns the entity kind implied by an id prefix, or "" if unknown.
func KindOf(id string) EntityKind {
	kind, _, err := ParseID(id)
	if err != nil {
		return ""
	}
	return kind
}

// IsIndustry reports whether s is one of the enumerated industries.
func IsIndustry(s string) bool {
	for _, ind := range Industries {
		if ind == s {
			return true
		}
	}
	return false
}
