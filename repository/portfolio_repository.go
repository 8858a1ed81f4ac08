package repository

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"loan-risk/domain"
)

// PortfolioRepository hands the engine a portfolio.
type PortfolioRepository interface {
	Load(ctx context.Context) (domain.Portfolio, error)
}

// Column headers of a portfolio sheet. Matching ignores case, spaces, dashes
// and underscores.
const (
	ColumnLoanAmount         = "Loan_Amount"
	ColumnDefaultProbability = "Default_Probability"
	ColumnRecoveryRate       = "Recovery_Rate"
)

// FilePortfolioRepository reads a portfolio from a .csv or .xlsx file.
type FilePortfolioRepository struct {
	path string
}

func NewFilePortfolioRepository(path string) *FilePortfolioRepository {
	return &FilePortfolioRepository{path: path}
}

func (r *FilePortfolioRepository) Path() string {
	return r.path
}

// Load reads the whole file on every call so edits are picked up.
func (r *FilePortfolioRepository) Load(_ context.Context) (domain.Portfolio, error) {
	if r.path == "" {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "no portfolio file configured")
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(r.path)); ext {
	case ".csv":
		rows, err = readCSV(r.path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r.path)
	default:
		return nil, errors.Wrapf(domain.ErrInvalidInput, "unsupported portfolio file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return ParsePortfolio(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "open %s: %v", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads every record of a comma separated portfolio.
func ReadCSV(rd io.Reader) ([][]string, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "read csv: %v", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "open %s: %v", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "read sheet %q of %s: %v", sheets[0], path, err)
	}
	return rows, nil
}

// ParsePortfolio turns a header row plus data rows into loans. Extra columns and
// blank rows are ignored. Range checks are left to Portfolio.Validate.
func ParsePortfolio(rows [][]string) (domain.Portfolio, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "portfolio has no header row")
	}

	index := map[string]int{}
	for i, name := range rows[0] {
		index[normalizeColumn(name)] = i
	}
	columns := make([]int, 3)
	for i, name := range []string{ColumnLoanAmount, ColumnDefaultProbability, ColumnRecoveryRate} {
		idx, ok := index[normalizeColumn(name)]
		if !ok {
			return nil, errors.Wrapf(domain.ErrInvalidInput, "missing column %s", name)
		}
		columns[i] = idx
	}

	portfolio := make(domain.Portfolio, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		// rows are reported 1-based counting the header, like a spreadsheet
		line := n + 2
		values := make([]float64, 3)
		for i, col := range columns {
			name := rows[0][col]
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				return nil, errors.Wrapf(domain.ErrInvalidInput, "row %d: %s is empty", line, name)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return nil, errors.Wrapf(domain.ErrInvalidInput, "row %d: %s %q is not a number", line, name, row[col])
			}
			values[i] = v
		}
		portfolio = append(portfolio, domain.Loan{
			LoanAmount:         values[0],
			DefaultProbability: values[1],
			RecoveryRate:       values[2],
		})
	}
	return portfolio, nil
}

func normalizeColumn(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// PortfolioRepositoryMemory serves a fixed portfolio.
type PortfolioRepositoryMemory struct {
	portfolio domain.Portfolio
}

func NewPortfolioRepositoryMemory(portfolio domain.Portfolio) *PortfolioRepositoryMemory {
	return &PortfolioRepositoryMemory{portfolio: portfolio}
}

func (r *PortfolioRepositoryMemory) Load(_ context.Context) (domain.Portfolio, error) {
	if len(r.portfolio) == 0 {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "no portfolio loaded")
	}
	return append(domain.Portfolio(nil), r.portfolio...), nil
}
