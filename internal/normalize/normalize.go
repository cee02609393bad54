// Package normalize converts reported emission quantities to tonnes and flags records
// that need a reviewer's attention.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/esg-extractor/internal/types"
)

// HighScope1Threshold is the scope 1 value above which a record is flagged.
const HighScope1Threshold = 50_000_000

// Flag texts
const (
	FlagHighScope1       = "Warning: High S1"
	flagIncompletePrefix = "Incomplete: "
)

var (
	millionMarkers  = []string{"million", "mmt", "megatonne", "megaton"}
	thousandMarkers = []string{"thousand", "kt", "kilotonne", "kiloton"}
	mtPattern       = regexp.MustCompile(`\bmt\b`)
)

// Multiplier returns the factor that converts a value in unit to tonnes.
func Multiplier(unit string) float64 {
	u := strings.ToLower(strings.TrimSpace(unit))
	for _, m := range millionMarkers {
		if strings.Contains(u, m) {
			return 1_000_000
		}
	}
	if mtPattern.MatchString(u) {
		return 1_000_000
	}
	for _, m := range thousandMarkers {
		if strings.Contains(u, m) {
			return 1_000
		}
	}
	return 1
}

// ToTonnes scales value by its unit. A nil value or unit returns value unchanged.
func ToTonnes(value *float64, unit *string) *float64 {
	if value == nil || unit == nil {
		return value
	}
	v := *value * Multiplier(*unit)
	return &v
}

// Emission returns the tonnes equivalent of an emission value.
func Emission(e types.EmissionValue) *float64 {
	return ToTonnes(e.Value, e.Unit)
}

// Flags returns the review flags for a record: a high scope 1 warning and the list of
// required fields that extraction could not fill.
func Flags(rec *types.ESGRecord, missing []string) []string {
	var flags []string
	if rec != nil && rec.Scope1.Value != nil && *rec.Scope1.Value > HighScope1Threshold {
		flags = append(flags, FlagHighScope1)
	}
	if len(missing) > 0 {
		flags = append(flags, fmt.Sprintf("%s%s", flagIncompletePrefix, strings.Join(missing, ", ")))
	}
	return flags
}

// JoinFlags renders flags the way the tabular export stores them.
func JoinFlags(flags []string) string {
	return strings.Join(flags, "; ")
}
