package generator

import (
	"fmt"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

var (
	companyPrefixes = []string{
		"Tech", "Global", "Smart", "Prime", "Elite", "Forward",
		"Dynamic", "Apex", "Nexus", "Quantum", "Venture", "Summit",
	}
	companyMiddles = []string{
		"Solutions", "Systems", "Services", "Group", "Holdings", "Enterprises",
		"Industries", "Ventures", "Labs", "Partners", "Networks", "Dynamics",
	}
	companySuffixes = []string{"Ltd.", "Inc.", "Corp.", "LLC"}

	streetNames = []string{"Main", "Oak", "Elm", "Park", "Central"}
	placeKinds  = []string{"City", "Town", "Village"}

	firstNames = []string{
		"Vishu", "Zeel", "Yash", "Diya", "Golu", "Mahek", "Mahesh", "Freya",
		"Parv", "Mansi", "Priyal", "Venisha", "Pratham", "Heer", "Stuti", "Julie",
	}
	lastNames = []string{
		"Doshi", "Sharma", "Parekh", "Sangani", "Shah", "Gandhi", "Mandani", "Jasani",
		"Malkan", "Lotia", "Kapoor", "Raghani", "Janani", "Dhruve", "Bhuptani",
	}

	departmentNames = []string{
		"Ministry of Transportation", "Department of Health",
		"Ministry of Energy", "Department of Education",
		"Ministry of Defense", "Department of Public Works",
		"Ministry of Commerce", "Department of Agriculture",
		"Ministry of Infrastructure", "Department of Finance",
		"Ministry of Environment", "Department of Justice",
		"Ministry of Interior", "Department of Social Services",
		"Ministry of Communication", "Department of Housing",
		"Ministry of Culture", "Department of Veterans Affairs",
		"Ministry of Labor", "Department of Labor Standards",
	}
)

// companyNameCapacity is the number of distinct company names.
func companyNameCapacity() int {
	return len(companyPrefixes) * len(companyMiddles) * len(companySuffixes)
}

func directorNameCapacity() int {
	return len(firstNames) * len(lastNames)
}

// buildPool creates the baseline population. Names are drawn without
// replacement so every entity of a kind is distinguishable by name.
func (b *builder) buildPool() error {
	if b.cfg.Companies > companyNameCapacity() {
		return fmt.Errorf("%w: %d companies requested, only %d distinct names",
			domain.ErrInvalidDataset, b.cfg.Companies, companyNameCapacity())
	}
	if b.cfg.Directors > directorNameCapacity() {
		return fmt.Errorf("%w: %d directors requested, only %d distinct names",
			domain.ErrInvalidDataset, b.cfg.Directors, directorNameCapacity())
	}
	if b.cfg.Departments > len(departmentNames) {
		return fmt.Errorf("%w: %d departments requested, only %d names",
			domain.ErrInvalidDataset, b.cfg.Departments, len(departmentNames))
	}

	names := b.rng.Perm(companyNameCapacity())
	for i := 0; i < b.cfg.Companies; i++ {
		n := names[i]
		suffix := n % len(companySuffixes)
		n /= len(companySuffixes)
		middle := n % len(companyMiddles)
		prefix := n / len(companyMiddles)

		b.companies = append(b.companies, domain.Company{
			ID:               domain.FormatID(domain.KindCompany, i),
			Name:             companyPrefixes[prefix] + " " + companyMiddles[middle] + " " + companySuffixes[suffix],
			RegistrationYear: b.intBetween(domain.MinRegistrationYear, domain.MaxRegistrationYear),
			IndustryType:     domain.Industries[b.rng.Intn(len(domain.Industries))],
			Address: fmt.Sprintf("%d %s St, %s %d",
				b.intBetween(1, 999),
				streetNames[b.rng.Intn(len(streetNames))],
				placeKinds[b.rng.Intn(len(placeKinds))],
				b.intBetween(10000, 99999)),
		})
	}

	names = b.rng.Perm(directorNameCapacity())
	for i := 0; i < b.cfg.Directors; i++ {
		n := names[i]
		b.directors = append(b.directors, domain.Director{
			ID:   domain.FormatID(domain.KindDirector, i),
			Name: firstNames[n/len(lastNames)] + " " + lastNames[n%len(lastNames)],
			Age:  b.intBetween(domain.MinDirectorAge, domain.MaxDirectorAge),
		})
	}

	for i := 0; i < b.cfg.Departments; i++ {
		b.departments = append(b.departments, domain.Department{
			ID:       domain.FormatID(domain.KindDepartment, i),
			Name:     departmentNames[i],
			Location: fmt.Sprintf("Capital City, Region %d", i%5+1),
		})
	}

	for i := 0; i < b.cfg.Tenders; i++ {
		b.tenders = append(b.tenders, domain.Tender{
			ID:            domain.FormatID(domain.KindTender, i),
			DepartmentID:  b.departments[b.rng.Intn(len(b.departments))].ID,
			ContractValue: int64(b.intBetween(domain.MinContractValue, domain.MaxContractValue)),
			Year:          b.intBetween(domain.MinTenderYear, domain.MaxTenderYear),
		})
	}

	b.directorsOf = make([][]int, len(b.companies))
	b.companiesOf = make([][]int, len(b.directors))
	b.biddersOf = make([][]int, len(b.tenders))
	b.winner = make([]int, len(b.tenders))
	for i := range b.winner {
		b.winner[i] = -1
	}
	b.usedCompany = make([]bool, len(b.companies))
	b.usedDirector = make([]bool, len(b.directors))
	b.usedTender = make([]bool, len(b.tenders))
	return nil
}

// intBetween returns a uniform integer in [lo, hi].
func (b *builder) intBetween(lo, hi int) int {
	return lo + b.rng.Intn(hi-lo+1)
}
