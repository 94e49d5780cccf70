package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// CSV file names, one per entity or relationship type.
const (
	CompaniesFile     = "companies.csv"
	DirectorsFile     = "directors.csv"
	TendersFile       = "tenders.csv"
	DepartmentsFile   = "departments.csv"
	RelationshipsFile = "relationships.csv"
)

var (
	companyHeader      = []string{"company_id", "name", "registration_year", "industry_type", "address", "fraud_label"}
	directorHeader     = []string{"director_id", "name", "age", "fraud_label"}
	tenderHeader       = []string{"tender_id", "department_id", "contract_value", "year", "winning_company_id", "fraud_label"}
	departmentHeader   = []string{"department_id", "name", "location"}
	relationshipHeader = []string{"source_id", "target_id", "relationship_type"}
)

type csvFile struct {
	name  string
	write func(io.Writer, *domain.Dataset) error
}

var csvFiles = []csvFile{
	{CompaniesFile, WriteCompanies},
	{DirectorsFile, WriteDirectors},
	{TendersFile, WriteTenders},
	{DepartmentsFile, WriteDepartments},
	{RelationshipsFile, WriteRelationships},
}

// WriteDir writes the five CSV files of ds into dir, creating it if needed.
// The files are staged in a sibling temporary directory and only moved into
// dir once all of them are written, so a failed write leaves dir as it was.
func WriteDir(dir string, ds *domain.Dataset) error {
	return writeDir(dir, ds, csvFiles)
}

func writeDir(dir string, ds *domain.Dataset, files []csvFile) error {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+"-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range files {
		if err := writeFile(filepath.Join(staging, f.name), ds, f.write); err != nil {
			return err
		}
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.Chmod(staging, 0o755); err != nil {
			return fmt.Errorf("prepare output dir: %w", err)
		}
		if err := os.Rename(staging, dir); err != nil {
			return fmt.Errorf("move output dir into place: %w", err)
		}
		return nil
	}
	// dir may hold other files; replace ours one rename at a time
	for _, f := range files {
		if err := os.Rename(filepath.Join(staging, f.name), filepath.Join(dir, f.name)); err != nil {
			return fmt.Errorf("move %s into place: %w", f.name, err)
		}
	}
	return nil
}

func writeFile(path string, ds *domain.Dataset, write func(io.Writer, *domain.Dataset) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file, ds); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeRows(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCompanies encodes companies.csv.
func WriteCompanies(w io.Writer, ds *domain.Dataset) error {
	return writeRows(w, companyHeader, len(ds.Companies), func(i int) []string {
		c := ds.Companies[i]
		return []string{c.ID, c.Name, strconv.Itoa(c.RegistrationYear), c.IndustryType, c.Address, strconv.Itoa(c.FraudLabel)}
	})
}

// WriteDirectors encodes directors.csv.
func WriteDirectors(w io.Writer, ds *domain.Dataset) error {
	return writeRows(w, directorHeader, len(ds.Directors), func(i int) []string {
		d := ds.Directors[i]
		return []string{d.ID, d.Name, strconv.Itoa(d.Age), strconv.Itoa(d.FraudLabel)}
	})
}

// WriteTenders encodes tenders.csv.
func WriteTenders(w io.Writer, ds *domain.Dataset) error {
	return writeRows(w, tenderHeader, len(ds.Tenders), func(i int) []string {
		t := ds.Tenders[i]
		return []string{t.ID, t.DepartmentID, strconv.FormatInt(t.ContractValue, 10), strconv.Itoa(t.Year), t.WinningCompanyID, strconv.Itoa(t.FraudLabel)}
	})
}

// WriteDepartments encodes departments.csv.
func WriteDepartments(w io.Writer, ds *domain.Dataset) error {
	return writeRows(w, departmentHeader, len(ds.Departments), func(i int) []string {
		d := ds.Departments[i]
		return []string{d.ID, d.Name, d.Location}
	})
}

// WriteRelationships encodes relationships.csv.
func WriteRelationships(w io.Writer, ds *domain.Dataset) error {
	return writeRows(w, relationshipHeader, len(ds.Relationships), func(i int) []string {
		r := ds.Relationships[i]
		return []string{r.SourceID, r.TargetID, string(r.Type)}
	})
}

// ReadDir loads and validates a dataset previously written by WriteDir.
func ReadDir(dir string) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	err := readFile(filepath.Join(dir, CompaniesFile), companyHeader, func(rec []string) error {
		year, err := atoi(rec[2])
		if err != nil {
			return err
		}
		label, err := atoi(rec[5])
		if err != nil {
			return err
		}
		ds.Companies = append(ds.Companies, domain.Company{
			ID: rec[0], Name: rec[1], RegistrationYear: year, IndustryType: rec[3], Address: rec[4], FraudLabel: label,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readFile(filepath.Join(dir, DirectorsFile), directorHeader, func(rec []string) error {
		age, err := atoi(rec[2])
		if err != nil {
			return err
		}
		label, err := atoi(rec[3])
		if err != nil {
			return err
		}
		ds.Directors = append(ds.Directors, domain.Director{ID: rec[0], Name: rec[1], Age: age, FraudLabel: label})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readFile(filepath.Join(dir, TendersFile), tenderHeader, func(rec []string) error {
		value, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: contract_value %q", domain.ErrInvalidDataset, rec[2])
		}
		year, err := atoi(rec[3])
		if err != nil {
			return err
		}
		label, err := atoi(rec[5])
		if err != nil {
			return err
		}
		ds.Tenders = append(ds.Tenders, domain.Tender{
			ID: rec[0], DepartmentID: rec[1], ContractValue: value, Year: year, WinningCompanyID: rec[4], FraudLabel: label,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readFile(filepath.Join(dir, DepartmentsFile), departmentHeader, func(rec []string) error {
		ds.Departments = append(ds.Departments, domain.Department{ID: rec[0], Name: rec[1], Location: rec[2]})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readFile(filepath.Join(dir, RelationshipsFile), relationshipHeader, func(rec []string) error {
		ds.Relationships = append(ds.Relationships, domain.Relationship{
			SourceID: rec[0], TargetID: rec[1], Type: domain.RelationshipType(rec[2]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := Validate(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func readFile(path string, header []string, row func([]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = len(header)
	first, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	for i, col := range header {
		if first[i] != col {
			return fmt.Errorf("%w: %s column %d is %q, want %q", domain.ErrInvalidDataset, path, i, first[i], col)
		}
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: not an integer: %q", domain.ErrInvalidDataset, s)
	}
	return n, nil
}
