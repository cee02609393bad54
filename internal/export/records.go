package export

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/esg-extractor/internal/types"
)

// RecordPath returns outputDir/{company}/{company}_{year}.json.
func RecordPath(outputDir, company string, year int) string {
	name := SafeName(company)
	return filepath.Join(outputDir, name, name+"_"+strconv.Itoa(year)+".json")
}

// SafeName makes a company name usable as a path segment.
func SafeName(company string) string {
	name := strings.TrimSpace(company)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "unknown"
	}
	return name
}

// SaveRecord writes rec as indented JSON under outputDir and returns the file path.
// The record must carry Meta.
func SaveRecord(outputDir string, rec *types.ESGRecord) (string, error) {
	if rec == nil || rec.Meta == nil {
		return "", fmt.Errorf("record has no metadata")
	}
	path := RecordPath(outputDir, rec.Meta.CompanyName, rec.Meta.ReportingYear)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", err
	}
	return path, nil
}

// LoadRecord reads one saved record.
func LoadRecord(path string) (*types.ESGRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	rec := types.NewESGRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if rec.Targets == nil {
		rec.Targets = []types.Target{}
	}
	return rec, nil
}

// LoadRecords reads every *.json record below outputDir, in path order. A missing
// directory yields no records.
func LoadRecords(outputDir string) ([]*types.ESGRecord, error) {
	var paths []string
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == outputDir {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", outputDir, err)
	}
	sort.Strings(paths)

	records := make([]*types.ESGRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := LoadRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
