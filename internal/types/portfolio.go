package types

import (
	"github.com/go-playground/validator/v10"
)

// Decision is the reviewer's verdict on a company.
type Decision string

const (
	DecisionCooperate Decision = "cooperate"
	DecisionSuspend   Decision = "suspend"
)

// RiskLevel classifies a company's scope 1 emissions trend.
type RiskLevel string

const (
	RiskHigh         RiskLevel = "high"
	RiskMedium       RiskLevel = "medium"
	RiskLow          RiskLevel = "low"
	RiskInsufficient RiskLevel = "insufficient"
)

// ExportRow is one row of the aggregated tabular export.
type ExportRow struct {
	Company              string   `json:"Company"`
	ReportingYear        *int     `json:"Reporting_Year"`
	Scope1Value          *float64 `json:"Scope_1_Value"`
	Scope1Unit           *string  `json:"Scope_1_Unit"`
	Scope1Calculated     *float64 `json:"Scope_1_Calculated"`
	Scope2MarketValue    *float64 `json:"Scope_2_Market_Value"`
	Scope2MarketUnit     *string  `json:"Scope_2_Market_Unit"`
	Scope2Calculated     *float64 `json:"Scope_2_Calculated"`
	AssurancePresent     bool     `json:"Assurance_Present"`
	Target2030Pct        *string  `json:"Target_2030_Pct"`
	TargetBaseYear       *int     `json:"Target_Base_Year"`
	ActionPlanSummary    *string  `json:"Action_Plan_Summary"`
	Flags                string   `json:"Flags"`
}

// CompanySummary aggregates every exported year of one company.
type CompanySummary struct {
	Name             string      `json:"name"`
	YearsAvailable   []int       `json:"years_available"`
	YearsCount       int         `json:"years_count"`
	RiskLevel        RiskLevel   `json:"risk_level"`
	Decision         *Decision   `json:"decision"`
	LatestScope1     *float64    `json:"latest_scope_1"`
	LatestScope1Unit *string     `json:"latest_scope_1_unit"`
	LatestScope2     *float64    `json:"latest_scope_2"`
	LatestScope2Unit *string     `json:"latest_scope_2_unit"`
	HasAssurance     bool        `json:"has_assurance"`
	Target2030       *string     `json:"target_2030"`
	ActionPlan       *string     `json:"action_plan"`
	Data             []ExportRow `json:"data"`
}

// DecisionRequest is the body of a decision update. An empty decision clears it.
type DecisionRequest struct {
	Company  string `json:"company" validate:"required,min=1"`
	Decision string `json:"decision" validate:"omitempty,oneof=cooperate suspend"`
}

// Validate validates the DecisionRequest using the validator.
func (r *DecisionRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
