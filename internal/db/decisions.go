package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/esg-extractor/internal/types"
)

// SetDecision stores a company's decision, replacing any previous one.
func (db *DB) SetDecision(ctx context.Context, company string, decision types.Decision) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO company_decisions (company, decision) VALUES ($1, $2)
		 ON CONFLICT (company) DO UPDATE SET decision = $2, updated_at = NOW()`,
		company, string(decision),
	)
	if err != nil {
		return fmt.Errorf("failed to set decision for %s: %w", company, err)
	}
	return nil
}

// ClearDecision removes a company's decision. Clearing an absent decision is not an error.
func (db *DB) ClearDecision(ctx context.Context, company string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM company_decisions WHERE company = $1`, company); err != nil {
		return fmt.Errorf("failed to clear decision for %s: %w", company, err)
	}
	return nil
}

// GetDecision returns nil if the company has no decision.
func (db *DB) GetDecision(ctx context.Context, company string) (*types.Decision, error) {
	var d string
	err := db.pool.QueryRow(ctx,
		`SELECT decision FROM company_decisions WHERE company = $1`, company,
	).Scan(&d)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get decision for %s: %w", company, err)
	}
	out := types.Decision(d)
	return &out, nil
}

// AllDecisions returns every stored decision.
func (db *DB) AllDecisions(ctx context.Context) (map[string]types.Decision, error) {
	rows, err := db.pool.Query(ctx, `SELECT company, decision FROM company_decisions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]types.Decision)
	for rows.Next() {
		var company, d string
		if err := rows.Scan(&company, &d); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out[company] = types.Decision(d)
	}
	return out, rows.Err()
}
