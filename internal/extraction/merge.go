package extraction

import (
	"strings"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Merge folds one pass's partial record into rec.
//
// A value already present in rec is never replaced. Emission values fill as a
// value+unit pair; a pair that arrived without a unit may later take the unit of an
// observation with the same value. Targets accumulate with structural de-duplication.
// Booleans take the first non-default observation: nil may become false or true, and
// false may become true, but true is final.
func Merge(rec *types.ESGRecord, partial *types.PartialRecord) {
	if rec == nil || partial == nil {
		return
	}

	fillString(&rec.CompanyName, partial.CompanyName)
	if rec.ReportingYear == nil && partial.ReportingYear != nil {
		rec.ReportingYear = types.Ptr(*partial.ReportingYear)
	}
	mergeEmission(&rec.Scope1, partial.Scope1)
	mergeEmission(&rec.Scope2Market, partial.Scope2Market)
	mergeBool(&rec.AssurancePresent, partial.AssurancePresent)
	rec.Targets = appendTargets(rec.Targets, partial.Targets)
	fillString(&rec.ActionPlanSummary, partial.ActionPlanSummary)
}

func fillString(dst **string, in *string) {
	if in == nil || strings.TrimSpace(*in) == "" {
		return
	}
	if *dst != nil && strings.TrimSpace(**dst) != "" {
		return
	}
	*dst = types.Ptr(strings.TrimSpace(*in))
}

func mergeEmission(dst *types.EmissionValue, in *types.EmissionValue) {
	if in == nil || in.Value == nil {
		return
	}
	unit := in.Unit
	if unit != nil && strings.TrimSpace(*unit) == "" {
		unit = nil
	}

	if dst.Value == nil {
		dst.Value = types.Ptr(*in.Value)
		dst.Unit = nil
		if unit != nil {
			dst.Unit = types.Ptr(strings.TrimSpace(*unit))
		}
		return
	}

	if (dst.Unit == nil || strings.TrimSpace(*dst.Unit) == "") && unit != nil && *dst.Value == *in.Value {
		dst.Unit = types.Ptr(strings.TrimSpace(*unit))
	}
}

func mergeBool(dst **bool, in *bool) {
	if in == nil {
		return
	}
	if *dst == nil || (!**dst && *in) {
		*dst = types.Ptr(*in)
	}
}

func appendTargets(dst []types.Target, in []types.Target) []types.Target {
	if dst == nil {
		dst = []types.Target{}
	}
	for _, t := range in {
		if t.TargetYear == 0 && t.TargetReductionPercentage == nil && t.BaseYear == nil {
			continue
		}
		if containsTarget(dst, t) {
			continue
		}
		c := types.Target{TargetYear: t.TargetYear}
		if t.TargetReductionPercentage != nil {
			c.TargetReductionPercentage = types.Ptr(*t.TargetReductionPercentage)
		}
		if t.BaseYear != nil {
			c.BaseYear = types.Ptr(*t.BaseYear)
		}
		dst = append(dst, c)
	}
	return dst
}

func containsTarget(ts []types.Target, t types.Target) bool {
	for _, existing := range ts {
		if existing.Equal(t) {
			return true
		}
	}
	return false
}
