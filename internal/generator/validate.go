package generator

import (
	"fmt"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Validate checks every structural invariant of a dataset: identifier
// format and sequence, attribute ranges, endpoint kinds, duplicate edges,
// the single-winner rule and orphan nodes. Errors wrap ErrInvalidDataset.
func Validate(ds *domain.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: nil dataset", domain.ErrInvalidDataset)
	}

	for i, c := range ds.Companies {
		if err := checkSequence(domain.KindCompany, c.ID, i); err != nil {
			return err
		}
		if c.RegistrationYear < domain.MinRegistrationYear || c.RegistrationYear > domain.MaxRegistrationYear {
			return fmt.Errorf("%w: %s registration_year %d out of range", domain.ErrInvalidDataset, c.ID, c.RegistrationYear)
		}
		if !domain.IsIndustry(c.IndustryType) {
			return fmt.Errorf("%w: %s unknown industry %q", domain.ErrInvalidDataset, c.ID, c.IndustryType)
		}
		if err := checkLabel(c.ID, c.FraudLabel); err != nil {
			return err
		}
	}
	for i, d := range ds.Directors {
		if err := checkSequence(domain.KindDirector, d.ID, i); err != nil {
			return err
		}
		if d.Age < domain.MinDirectorAge || d.Age > domain.MaxDirectorAge {
			return fmt.Errorf("%w: %s age %d out of range", domain.ErrInvalidDataset, d.ID, d.Age)
		}
		if err := checkLabel(d.ID, d.FraudLabel); err != nil {
			return err
		}
	}
	departments := make(map[string]bool, len(ds.Departments))
	for i, d := range ds.Departments {
		if err := checkSequence(domain.KindDepartment, d.ID, i); err != nil {
			return err
		}
		departments[d.ID] = true
	}
	for i, t := range ds.Tenders {
		if err := checkSequence(domain.KindTender, t.ID, i); err != nil {
			return err
		}
		if t.ContractValue < domain.MinContractValue || t.ContractValue > domain.MaxContractValue {
			return fmt.Errorf("%w: %s contract_value %d out of range", domain.ErrInvalidDataset, t.ID, t.ContractValue)
		}
		if t.Year < domain.MinTenderYear || t.Year > domain.MaxTenderYear {
			return fmt.Errorf("%w: %s year %d out of range", domain.ErrInvalidDataset, t.ID, t.Year)
		}
		if !departments[t.DepartmentID] {
			return fmt.Errorf("%w: %s issued by unknown department %q", domain.ErrInvalidDataset, t.ID, t.DepartmentID)
		}
		if err := checkLabel(t.ID, t.FraudLabel); err != nil {
			return err
		}
	}

	counts := map[domain.EntityKind]int{
		domain.KindCompany:    len(ds.Companies),
		domain.KindDirector:   len(ds.Directors),
		domain.KindTender:     len(ds.Tenders),
		domain.KindDepartment: len(ds.Departments),
	}
	type key struct {
		src, dst string
		typ      domain.RelationshipType
	}
	seen := make(map[key]bool, len(ds.Relationships))
	linked := make(map[string]bool)
	wonBy := make(map[string]string)
	bids := make(map[key]bool)
	issuedBy := make(map[string]string)

	for _, r := range ds.Relationships {
		srcKind, dstKind, ok := r.Type.Endpoints()
		if !ok {
			return fmt.Errorf("%w: unknown relationship type %q", domain.ErrInvalidDataset, r.Type)
		}
		if err := checkEndpoint(r.SourceID, srcKind, counts); err != nil {
			return fmt.Errorf("%s source: %w", r.Type, err)
		}
		if err := checkEndpoint(r.TargetID, dstKind, counts); err != nil {
			return fmt.Errorf("%s target: %w", r.Type, err)
		}
		k := key{r.SourceID, r.TargetID, r.Type}
		if seen[k] {
			return fmt.Errorf("%w: duplicate %s edge %s -> %s", domain.ErrInvalidDataset, r.Type, r.SourceID, r.TargetID)
		}
		seen[k] = true
		linked[r.SourceID] = true
		linked[r.TargetID] = true

		switch r.Type {
		case domain.RelWon:
			if prev, ok := wonBy[r.TargetID]; ok {
				return fmt.Errorf("%w: %s won by both %s and %s", domain.ErrInvalidDataset, r.TargetID, prev, r.SourceID)
			}
			wonBy[r.TargetID] = r.SourceID
		case domain.RelBiddedFor:
			bids[key{r.SourceID, r.TargetID, domain.RelBiddedFor}] = true
		case domain.RelIssuedBy:
			if prev, ok := issuedBy[r.SourceID]; ok {
				return fmt.Errorf("%w: %s issued by both %s and %s", domain.ErrInvalidDataset, r.SourceID, prev, r.TargetID)
			}
			issuedBy[r.SourceID] = r.TargetID
		}
	}

	for _, t := range ds.Tenders {
		winner := wonBy[t.ID]
		if winner != t.WinningCompanyID {
			return fmt.Errorf("%w: %s winning_company_id %q disagrees with WON edge %q",
				domain.ErrInvalidDataset, t.ID, t.WinningCompanyID, winner)
		}
		if winner != "" && !bids[key{winner, t.ID, domain.RelBiddedFor}] {
			return fmt.Errorf("%w: %s winner %s never bid", domain.ErrInvalidDataset, t.ID, winner)
		}
		if issuedBy[t.ID] != t.DepartmentID {
			return fmt.Errorf("%w: %s ISSUED_BY edge disagrees with department_id %s",
				domain.ErrInvalidDataset, t.ID, t.DepartmentID)
		}
	}

	for _, c := range ds.Companies {
		if !linked[c.ID] {
			return fmt.Errorf("%w: orphan company %s", domain.ErrInvalidDataset, c.ID)
		}
	}
	for _, d := range ds.Directors {
		if !linked[d.ID] {
			return fmt.Errorf("%w: orphan director %s", domain.ErrInvalidDataset, d.ID)
		}
	}
	for _, t := range ds.Tenders {
		if !linked[t.ID] {
			return fmt.Errorf("%w: orphan tender %s", domain.ErrInvalidDataset, t.ID)
		}
	}
	return nil
}

func checkSequence(kind domain.EntityKind, id string, want int) error {
	k, n, err := domain.ParseID(id)
	if err != nil {
		return err
	}
	if k != kind || n != want || domain.FormatID(kind, n) != id {
		return fmt.Errorf("%w: expected %s at position %d, got %q",
			domain.ErrInvalidDataset, domain.FormatID(kind, want), want, id)
	}
	return nil
}

func checkLabel(id string, label int) error {
	if label != 0 && label != 1 {
		return fmt.Errorf("%w: %s fraud_label %d", domain.ErrInvalidDataset, id, label)
	}
	return nil
}

func checkEndpoint(id string, want domain.EntityKind, counts map[domain.EntityKind]int) error {
	kind, n, err := domain.ParseID(id)
	if err != nil {
		return err
	}
	if kind != want {
		return fmt.Errorf("%w: %s is a %s, want %s", domain.ErrInvalidDataset, id, kind, want)
	}
	if n >= counts[kind] {
		return fmt.Errorf("%w: dangling reference %s", domain.ErrInvalidDataset, id)
	}
	return nil
}

// InducedCycleLength checks that the DIRECTOR_OF edges among the given
// members form exactly one simple alternating cycle and returns its length
// in director hops. Edges touching non-members are ignored.
func InducedCycleLength(directors, companies []string, rels []domain.Relationship) (int, error) {
	if len(directors) == 0 || len(directors) != len(companies) {
		return 0, fmt.Errorf("%w: ring needs equal, non-zero director and company counts", domain.ErrInvalidDataset)
	}
	isDirector := make(map[string]bool, len(directors))
	for _, d := range directors {
		isDirector[d] = true
	}
	isCompany := make(map[string]bool, len(companies))
	for _, c := range companies {
		isCompany[c] = true
	}

	adj := make(map[string][]string, len(directors)+len(companies))
	for _, r := range rels {
		if r.Type != domain.RelDirectorOf || !isDirector[r.SourceID] || !isCompany[r.TargetID] {
			continue
		}
		adj[r.SourceID] = append(adj[r.SourceID], r.TargetID)
		adj[r.TargetID] = append(adj[r.TargetID], r.SourceID)
	}
	for _, m := range append(append([]string(nil), directors...), companies...) {
		if len(adj[m]) != 2 {
			return 0, fmt.Errorf("%w: ring member %s has %d ring edges, want 2",
				domain.ErrInvalidDataset, m, len(adj[m]))
		}
	}

	start := directors[0]
	prev, cur := "", start
	hops := 0
	visited := map[string]bool{start: true}
	for {
		next := adj[cur][0]
		if next == prev {
			next = adj[cur][1]
		}
		prev, cur = cur, next
		if isDirector[cur] {
			hops++
			if cur == start {
				break
			}
		}
		if visited[cur] {
			return hops, fmt.Errorf("%w: ring revisits %s", domain.ErrInvalidDataset, cur)
		}
		visited[cur] = true
	}
	if len(visited) != len(directors)+len(companies) {
		return hops, fmt.Errorf("%w: ring splits into %d-hop cycle over %d of %d members",
			domain.ErrInvalidDataset, hops, len(visited), len(directors)+len(companies))
	}
	return hops, nil
}
