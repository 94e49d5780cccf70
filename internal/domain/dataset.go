package domain

import (
	"sort"
	"time"
)

// Dataset is a complete, frozen procurement graph in creation order.
type Dataset struct {
	Seed          int64          `json:"seed"`
	Companies     []Company      `json:"companies"`
	Directors     []Director     `json:"directors"`
	Tenders       []Tender       `json:"tenders"`
	Departments   []Department   `json:"departments"`
	Relationships []Relationship `json:"relationships"`
}

// DatasetRecord describes a stored dataset.
type DatasetRecord struct {
	ID        string    `json:"id"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"createdAt"`
	Summary   Summary   `json:"summary"`
}

// Summary is the verification report of a dataset.
type Summary struct {
	Companies          int                      `json:"companies"`
	Directors          int                      `json:"directors"`
	Tenders            int                      `json:"tenders"`
	Departments        int                      `json:"departments"`
	Relationships      int                      `json:"relationships"`
	FraudCompanies     int                      `json:"fraudCompanies"`
	FraudDirectors     int                      `json:"fraudDirectors"`
	FraudTenders       int                      `json:"fraudTenders"`
	Industries         int                      `json:"industries"`
	RegistrationYears  [2]int                   `json:"registrationYears"`
	TenderYears        [2]int                   `json:"tenderYears"`
	ContractValueMin   int64                    `json:"contractValueMin"`
	ContractValueMax   int64                    `json:"contractValueMax"`
	ContractValueMean  float64                  `json:"contractValueMean"`
	TotalContractValue int64                    `json:"totalContractValue"`
	RelationshipCounts map[RelationshipType]int `json:"relationshipCounts"`
}

// Summarize computes the verification report for ds.
func Summarize(ds *Dataset) Summary {
	s := Summary{
		Companies:          len(ds.Companies),
		Directors:          len(ds.Directors),
		Tenders:            len(ds.Tenders),
		Departments:        len(ds.Departments),
		Relationships:      len(ds.Relationships),
		RelationshipCounts: make(map[RelationshipType]int, len(RelationshipTypes)),
	}

	industries := make(map[string]struct{})
	for i, c := range ds.Companies {
		s.FraudCompanies += c.FraudLabel
		industries[c.IndustryType] = struct{}{}
		if i == 0 || c.RegistrationYear < s.RegistrationYears[0] {
			s.RegistrationYears[0] = c.RegistrationYear
		}
		if c.RegistrationYear > s.RegistrationYears[1] {
			s.RegistrationYears[1] = c.RegistrationYear
		}
	}
	s.Industries = len(industries)

	for _, d := range ds.Directors {
		s.FraudDirectors += d.FraudLabel
	}

	for i, t := range ds.Tenders {
		s.FraudTenders += t.FraudLabel
		s.TotalContractValue += t.ContractValue
		if i == 0 || t.ContractValue < s.ContractValueMin {
			s.ContractValueMin = t.ContractValue
		}
		if t.ContractValue > s.ContractValueMax {
			s.ContractValueMax = t.ContractValue
		}
		if i == 0 || t.Year < s.TenderYears[0] {
			s.TenderYears[0] = t.Year
		}
		if t.Year > s.TenderYears[1] {
			s.TenderYears[1] = t.Year
		}
	}
	if len(ds.Tenders) > 0 {
		s.ContractValueMean = float64(s.TotalContractValue) / float64(len(ds.Tenders))
	}

	for _, r := range ds.Relationships {
		s.RelationshipCounts[r.Type]++
	}
	return s
}

// FraudCompanyIDs returns the sorted ids of companies labeled fraudulent.
func (ds *Dataset) FraudCompanyIDs() []string {
	var ids []string
	for _, c := range ds.Companies {
		if c.FraudLabel == 1 {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
