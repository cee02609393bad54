package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Record statuses
const (
	StatusComplete         = "complete"
	StatusInsufficientData = "insufficient_data"
)

// RecordInput is one extraction result to persist.
type RecordInput struct {
	RunID   uuid.UUID
	Record  *types.ESGRecord
	Status  string
	Missing []string
}

// StoredRecord is a persisted extraction result.
type StoredRecord struct {
	ID            uuid.UUID        `json:"id"`
	RunID         *uuid.UUID       `json:"run_id,omitempty"`
	Company       string           `json:"company"`
	ReportingYear int              `json:"reporting_year"`
	Filename      string           `json:"filename"`
	Status        string           `json:"status"`
	Missing       []string         `json:"missing"`
	Record        *types.ESGRecord `json:"record"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// RecordFilters holds optional filters for listing records
type RecordFilters struct {
	Company string
	Year    int
	Status  string
	Limit   int
}
