package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/rs/zerolog"
)

// Importer loads raw market data from a directory of CSV files into the
// history store. File naming decides the series kind:
//
//	<SYMBOL>.csv      price series       (SPY.csv, TA35.csv)
//	fx_<PAIR>.csv     FX fixing series   (fx_USDILS.csv)
//	rate_<NAME>.csv   annual rate levels (rate_BOI.csv, percent as published)
//
// Each file has a header row followed by date,value rows. Dates may be
// ISO (2006-01-02) or day-first (02/01/2006); values may carry thousands
// separators. Unparseable rows are skipped and counted, never fatal.
type Importer struct {
	store *HistoryStore
	log   zerolog.Logger
}

// NewImporter creates a new CSV importer.
func NewImporter(store *HistoryStore, log zerolog.Logger) *Importer {
	return &Importer{
		store: store,
		log:   log.With().Str("component", "importer").Logger(),
	}
}

// ImportResult summarizes one directory import.
type ImportResult struct {
	Files       int
	Rows        int
	SkippedRows int
}

// ImportDir imports every CSV file in dir and records the run.
// Returns an error only for store failures or an unreadable directory;
// individual bad rows are skipped with a warning.
func (imp *Importer) ImportDir(dir string) (*ImportResult, error) {
	started := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	result := &ImportResult{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		rows, skipped, err := imp.importFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", entry.Name(), err)
		}

		result.Files++
		result.Rows += rows
		result.SkippedRows += skipped
	}

	if err := imp.store.RecordImportRun(ImportRun{
		Source:      dir,
		Files:       result.Files,
		Rows:        result.Rows,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	imp.log.Info().
		Str("dir", dir).
		Int("files", result.Files).
		Int("rows", result.Rows).
		Int("skipped", result.SkippedRows).
		Msg("Import completed")

	return result, nil
}

func (imp *Importer) importFile(path string) (rows, skipped int, err error) {
	points, skipped, err := imp.readCSV(path)
	if err != nil {
		return 0, 0, err
	}
	if len(points) == 0 {
		imp.log.Warn().Str("file", filepath.Base(path)).Msg("No usable rows in file")
		return 0, skipped, nil
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	lower := strings.ToLower(name)

	switch {
	case strings.HasPrefix(lower, "fx_"):
		err = imp.store.UpsertFXRates(name[len("fx_"):], points)
	case strings.HasPrefix(lower, "rate_"):
		err = imp.store.UpsertRateLevels(name[len("rate_"):], points)
	default:
		err = imp.store.UpsertPrices(name, points)
	}
	if err != nil {
		return 0, 0, err
	}

	return len(points), skipped, nil
}

func (imp *Importer) readCSV(path string) ([]domain.PricePoint, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // Tolerate trailing columns
	reader.TrimLeadingSpace = true

	var points []domain.PricePoint
	skipped := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read CSV: %w", err)
		}

		if first {
			first = false
			// Header row when the first field is not a date
			if _, err := parseDate(record[0]); err != nil {
				continue
			}
		}

		if len(record) < 2 {
			skipped++
			continue
		}

		date, err := parseDate(record[0])
		if err != nil {
			skipped++
			continue
		}

		value, err := parseValue(record[1])
		if err != nil {
			skipped++
			continue
		}

		points = append(points, domain.PricePoint{Date: date, Value: value})
	}

	if skipped > 0 {
		imp.log.Warn().
			Str("file", filepath.Base(path)).
			Int("skipped", skipped).
			Msg("Skipped unparseable rows")
	}

	return points, skipped, nil
}

// dateLayouts are tried in order. Day-first layouts come after ISO so
// unambiguous ISO data never mis-parses.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}
