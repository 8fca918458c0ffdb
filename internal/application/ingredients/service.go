package ingredients

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Column order of dictionary spreadsheets. The first row is a header.
const (
	colCategoryID = iota
	colEffectType
	colNameKr
	colNameEn
	colLevel
	colReason
	colNotes
)

// Service covers the dictionary use cases outside the analysis pipeline.
type Service struct {
	Repo   ingredient.Repository
	Logger *slog.Logger
}

func NewService(repo ingredient.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Repo: repo, Logger: logger}
}

// Import loads a .xlsx or .csv dictionary file. Rows without a Korean name
// and names already in the dictionary (or earlier in the file) are skipped.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (ingredient.ImportSummary, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return ingredient.ImportSummary{}, fmt.Errorf("%w: %q", ingredient.ErrUnsupportedFile, filename)
	}
	if err != nil {
		return ingredient.ImportSummary{}, fmt.Errorf("%w: %v", ingredient.ErrInvalidFile, err)
	}

	var (
		summary ingredient.ImportSummary
		batch   []ingredient.Ingredient
		seen    = map[string]bool{}
	)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		ing := fromRow(row)
		if ing.NameKr == "" || seen[ing.NameKr] {
			summary.Skipped++
			continue
		}
		seen[ing.NameKr] = true

		_, exists, err := s.Repo.FindByName(ctx, ing.NameKr)
		if err != nil {
			return summary, fmt.Errorf("check %q: %w", ing.NameKr, err)
		}
		if exists {
			summary.Skipped++
			continue
		}
		batch = append(batch, ing)
	}

	n, err := s.Repo.Insert(ctx, batch)
	if err != nil {
		return summary, fmt.Errorf("insert ingredients: %w", err)
	}
	summary.Inserted = n
	s.Logger.Info("ingredients.imported", "file", filename, "inserted", summary.Inserted, "skipped", summary.Skipped)
	return summary, nil
}

// Search returns up to limit ingredients whose Korean name contains keyword.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]ingredient.Ingredient, error) {
	keyword = norm.NFC.String(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, ingredient.ErrEmptyKeyword
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.Repo.Search(ctx, keyword, limit)
}

func fromRow(row []string) ingredient.Ingredient {
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return ingredient.Ingredient{
		CategoryID: cell(colCategoryID),
		EffectType: cell(colEffectType),
		NameKr:     norm.NFC.String(cell(colNameKr)),
		NameEn:     cell(colNameEn),
		Level:      cell(colLevel),
		Reason:     cell(colReason),
		Notes:      cell(colNotes),
	}
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}
