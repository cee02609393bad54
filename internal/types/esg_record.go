package types

import "strings"

// Field names carried by PartialRecord and ESGRecord.
const (
	FieldCompanyName       = "company_name"
	FieldReportingYear     = "reporting_year"
	FieldScope1            = "scope_1"
	FieldScope2Market      = "scope_2_market"
	FieldAssurancePresent  = "assurance_present"
	FieldTargets           = "targets"
	FieldActionPlanSummary = "action_plan_summary"
)

// EmissionValue is a reported emission quantity and its unit (e.g. 482123, "tCO2e").
type EmissionValue struct {
	Value *float64 `json:"value"`
	Unit  *string  `json:"unit"`
}

// IsZero reports whether neither the value nor the unit was reported.
func (e EmissionValue) IsZero() bool {
	return e.Value == nil && (e.Unit == nil || strings.TrimSpace(*e.Unit) == "")
}

// Target is a GHG reduction target.
type Target struct {
	TargetReductionPercentage *string `json:"target_reduction_percentage"`
	TargetYear                int     `json:"target_year"`
	BaseYear                  *int    `json:"base_year"`
}

// Equal compares targets by value rather than by pointer identity.
func (t Target) Equal(o Target) bool {
	if t.TargetYear != o.TargetYear {
		return false
	}
	if !equalStringPtr(t.TargetReductionPercentage, o.TargetReductionPercentage) {
		return false
	}
	switch {
	case t.BaseYear == nil && o.BaseYear == nil:
		return true
	case t.BaseYear == nil || o.BaseYear == nil:
		return false
	default:
		return *t.BaseYear == *o.BaseYear
	}
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

// PartialRecord is the output of one extraction pass. A nil field means the model did
// not report it in this pass, not that the value is false or zero.
type PartialRecord struct {
	CompanyName       *string        `json:"company_name,omitempty"`
	ReportingYear     *int           `json:"reporting_year,omitempty"`
	Scope1            *EmissionValue `json:"scope_1,omitempty"`
	Scope2Market      *EmissionValue `json:"scope_2_market,omitempty"`
	AssurancePresent  *bool          `json:"assurance_present,omitempty"`
	Targets           []Target       `json:"targets,omitempty"`
	ActionPlanSummary *string        `json:"action_plan_summary,omitempty"`
}

// Reported returns the names of the fields this pass carried a value for.
func (p *PartialRecord) Reported() []string {
	if p == nil {
		return nil
	}
	var names []string
	if p.CompanyName != nil {
		names = append(names, FieldCompanyName)
	}
	if p.ReportingYear != nil {
		names = append(names, FieldReportingYear)
	}
	if p.Scope1 != nil && !p.Scope1.IsZero() {
		names = append(names, FieldScope1)
	}
	if p.Scope2Market != nil && !p.Scope2Market.IsZero() {
		names = append(names, FieldScope2Market)
	}
	if p.AssurancePresent != nil {
		names = append(names, FieldAssurancePresent)
	}
	if len(p.Targets) > 0 {
		names = append(names, FieldTargets)
	}
	if p.ActionPlanSummary != nil {
		names = append(names, FieldActionPlanSummary)
	}
	return names
}

// RecordMeta describes where a record came from.
type RecordMeta struct {
	CompanyName   string `json:"company_name"`
	ReportingYear int    `json:"reporting_year"`
	Filename      string `json:"filename"`
	Timestamp     string `json:"timestamp"`
}

// ESGRecord is the merged result across passes. Every field is always present in the
// JSON form; unreported values serialize as null, targets as an empty list.
type ESGRecord struct {
	CompanyName       *string       `json:"company_name"`
	ReportingYear     *int          `json:"reporting_year"`
	Scope1            EmissionValue `json:"scope_1"`
	Scope2Market      EmissionValue `json:"scope_2_market"`
	AssurancePresent  *bool         `json:"assurance_present"`
	Targets           []Target      `json:"targets"`
	ActionPlanSummary *string       `json:"action_plan_summary"`
	Meta              *RecordMeta   `json:"meta_data,omitempty"`
}

// NewESGRecord returns an empty, fully keyed record.
func NewESGRecord() *ESGRecord {
	return &ESGRecord{Targets: []Target{}}
}

// Clone returns a deep copy of the record.
func (r *ESGRecord) Clone() *ESGRecord {
	if r == nil {
		return nil
	}
	out := &ESGRecord{
		CompanyName:       cloneString(r.CompanyName),
		ReportingYear:     cloneInt(r.ReportingYear),
		Scope1:            r.Scope1.clone(),
		Scope2Market:      r.Scope2Market.clone(),
		AssurancePresent:  cloneBool(r.AssurancePresent),
		Targets:           make([]Target, 0, len(r.Targets)),
		ActionPlanSummary: cloneString(r.ActionPlanSummary),
	}
	for _, t := range r.Targets {
		out.Targets = append(out.Targets, Target{
			TargetReductionPercentage: cloneString(t.TargetReductionPercentage),
			TargetYear:                t.TargetYear,
			BaseYear:                  cloneInt(t.BaseYear),
		})
	}
	if r.Meta != nil {
		m := *r.Meta
		out.Meta = &m
	}
	return out
}

// TargetForYear returns the first target for the given year, if any.
func (r *ESGRecord) TargetForYear(year int) (Target, bool) {
	for _, t := range r.Targets {
		if t.TargetYear == year {
			return t, true
		}
	}
	return Target{}, false
}

func (e EmissionValue) clone() EmissionValue {
	return EmissionValue{Value: cloneFloat(e.Value), Unit: cloneString(e.Unit)}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for building records in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
