// Package metadata derives a report's company and year from where it sits on disk.
package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultYear is used when neither the folder layout nor the filename names a year.
const DefaultYear = 2023

// ReportsDir is the folder that anchors the reports/{Company}/{Year}/{file} layout.
const ReportsDir = "reports"

var yearPattern = regexp.MustCompile(`20[0-9]{2}`)

// Metadata is the fallback identity of a report.
type Metadata struct {
	Company string `json:"company"`
	Year    int    `json:"year"`
}

// FromPath reads .../reports/{Company}/{Year}/{file}.pdf. When the layout is absent the
// company is the file stem up to the first underscore and the year is the first
// 20xx in the filename, else DefaultYear. A file directly under reports/{Company}/
// takes its company from the folder and its year from the filename.
func FromPath(path string) Metadata {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	filename := parts[len(parts)-1]

	md := Metadata{
		Company: companyFromFilename(filename),
		Year:    DefaultYear,
	}

	// The last "reports" wins so absolute paths under e.g. /srv/reports/archive/reports/ resolve.
	idx := -1
	for i, p := range parts[:len(parts)-1] {
		if p == ReportsDir {
			idx = i
		}
	}

	if idx >= 0 && idx+1 < len(parts)-1 {
		md.Company = parts[idx+1]
		if idx+2 < len(parts)-1 {
			if y, ok := leadingYear(parts[idx+2]); ok {
				md.Year = y
			}
			return md
		}
	}

	if y, ok := firstYear(filename); ok {
		md.Year = y
	}
	return md
}

func companyFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if i := strings.Index(stem, "_"); i > 0 {
		return stem[:i]
	}
	return stem
}

func leadingYear(s string) (int, bool) {
	loc := yearPattern.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return 0, false
	}
	y, err := strconv.Atoi(s[loc[0]:loc[1]])
	return y, err == nil
}

func firstYear(s string) (int, bool) {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	return y, err == nil
}
