package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/esg-extractor/internal/types"
)

const defaultListLimit = 500

// SaveRecord upserts a record keyed by company and reporting year and returns its ID.
// The record must carry Meta.
func (db *DB) SaveRecord(ctx context.Context, in *RecordInput) (uuid.UUID, error) {
	if in == nil || in.Record == nil || in.Record.Meta == nil {
		return uuid.Nil, fmt.Errorf("record has no metadata")
	}
	content, err := json.Marshal(in.Record)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	var runID *uuid.UUID
	if in.RunID != uuid.Nil {
		runID = &in.RunID
	}
	missing := in.Missing
	if missing == nil {
		missing = []string{}
	}

	meta := in.Record.Meta
	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO esg_records (run_id, company, reporting_year, filename, status, missing, record)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (company, reporting_year) DO UPDATE SET
		   run_id = $1, filename = $4, status = $5, missing = $6, record = $7, updated_at = NOW()
		 RETURNING id`,
		runID, meta.CompanyName, meta.ReportingYear, meta.Filename, in.Status, missing, content,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save record %s %d: %w", meta.CompanyName, meta.ReportingYear, err)
	}
	return id, nil
}

// GetRecord retrieves a record by company and year. Returns nil if not found.
func (db *DB) GetRecord(ctx context.Context, company string, year int) (*StoredRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM esg_records WHERE company = $1 AND reporting_year = $2`,
		company, year,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// ListRecords retrieves records with optional filters, ordered by company then year.
func (db *DB) ListRecords(ctx context.Context, filters RecordFilters) ([]StoredRecord, error) {
	query, args := buildListQuery(filters)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	out := []StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Records returns just the extracted records, for export.
func (db *DB) Records(ctx context.Context, filters RecordFilters) ([]*types.ESGRecord, error) {
	stored, err := db.ListRecords(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]*types.ESGRecord, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Record)
	}
	return out, nil
}

const recordColumns = `id, run_id, company, reporting_year, filename, status, missing, record, created_at, updated_at`

func buildListQuery(filters RecordFilters) (string, []any) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	query := `SELECT ` + recordColumns + ` FROM esg_records WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Company != "" {
		query += fmt.Sprintf(" AND company = $%d", argNum)
		args = append(args, filters.Company)
		argNum++
	}
	if filters.Year != 0 {
		query += fmt.Sprintf(" AND reporting_year = $%d", argNum)
		args = append(args, filters.Year)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY company ASC, reporting_year ASC LIMIT $%d", argNum)
	args = append(args, filters.Limit)
	return query, args
}

func scanRecord(row pgx.Row) (*StoredRecord, error) {
	var rec StoredRecord
	var content []byte
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Company, &rec.ReportingYear, &rec.Filename,
		&rec.Status, &rec.Missing, &content, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Record = types.NewESGRecord()
	if err := json.Unmarshal(content, rec.Record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", rec.ID, err)
	}
	return &rec, nil
}
