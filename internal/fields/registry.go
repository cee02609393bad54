// Package fields defines the extraction field registry: which fields a record carries,
// their kinds, and which are required before extraction can stop early.
package fields

import (
	"fmt"
	"strings"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Kind is the value shape of a field and selects its presence predicate.
type Kind string

const (
	KindString   Kind = "string"
	KindInteger  Kind = "integer"
	KindEmission Kind = "emission"
	KindBool     Kind = "bool"
	KindList     Kind = "list"
)

// Field describes one named datum the pipeline must fill.
type Field struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// kinds maps every field the record type carries to its kind.
var kinds = map[string]Kind{
	types.FieldCompanyName:       KindString,
	types.FieldReportingYear:     KindInteger,
	types.FieldScope1:            KindEmission,
	types.FieldScope2Market:      KindEmission,
	types.FieldAssurancePresent:  KindBool,
	types.FieldTargets:           KindList,
	types.FieldActionPlanSummary: KindString,
}

// Registry is an immutable, ordered set of fields.
type Registry struct {
	fields []Field
	index  map[string]int
}

// NewRegistry builds a registry, rejecting empty or duplicate names, names the record
// type does not carry, and kinds that disagree with the record type.
func NewRegistry(fs ...Field) (*Registry, error) {
	if len(fs) == 0 {
		return nil, fmt.Errorf("registry needs at least one field")
	}
	r := &Registry{
		fields: make([]Field, 0, len(fs)),
		index:  make(map[string]int, len(fs)),
	}
	for _, f := range fs {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("field name cannot be empty")
		}
		want, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if f.Kind == "" {
			f.Kind = want
		}
		if f.Kind != want {
			return nil, fmt.Errorf("field %q has kind %s, record carries %s", name, f.Kind, want)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		f.Name = name
		r.index[name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r, nil
}

// DefaultRegistry returns the ESG field set.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Field{Name: types.FieldCompanyName, Kind: KindString, Required: true,
			Description: "Legal or commonly used name of the reporting company"},
		Field{Name: types.FieldReportingYear, Kind: KindInteger,
			Description: "Fiscal or calendar year the report covers"},
		Field{Name: types.FieldScope1, Kind: KindEmission, Required: true,
			Description: "Total Scope 1 (direct) GHG emissions with unit"},
		Field{Name: types.FieldScope2Market, Kind: KindEmission, Required: true,
			Description: "Total Scope 2 market-based GHG emissions with unit"},
		Field{Name: types.FieldAssurancePresent, Kind: KindBool,
			Description: "Whether emissions data has independent third-party assurance"},
		Field{Name: types.FieldTargets, Kind: KindList, Required: true,
			Description: "GHG reduction targets: percentage, target year, base year"},
		Field{Name: types.FieldActionPlanSummary, Kind: KindString,
			Description: "Short summary of the decarbonisation action plan"},
	)
	if err != nil {
		panic(fmt.Sprintf("default registry: %v", err))
	}
	return r
}

// Fields returns the registry's fields in order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Required returns the names of the required fields in order.
func (r *Registry) Required() []string {
	var names []string
	for _, f := range r.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Lookup returns the named field.
func (r *Registry) Lookup(name string) (Field, bool) {
	i, ok := r.index[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Missing returns the required fields not yet present in rec, in registry order.
// A nil record is missing every required field.
func (r *Registry) Missing(rec *types.ESGRecord) []string {
	missing := []string{}
	for _, f := range r.fields {
		if f.Required && !Present(rec, f.Name) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Present reports whether the named field holds a value in rec.
func Present(rec *types.ESGRecord, name string) bool {
	if rec == nil {
		return false
	}
	switch name {
	case types.FieldCompanyName:
		return nonBlank(rec.CompanyName)
	case types.FieldReportingYear:
		return rec.ReportingYear != nil
	case types.FieldScope1:
		return rec.Scope1.Value != nil
	case types.FieldScope2Market:
		return rec.Scope2Market.Value != nil
	case types.FieldAssurancePresent:
		return rec.AssurancePresent != nil
	case types.FieldTargets:
		return len(rec.Targets) > 0
	case types.FieldActionPlanSummary:
		return nonBlank(rec.ActionPlanSummary)
	}
	return false
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
