package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusFailed    Status = "failed"
)

// sqlite's datetime('now') format, UTC.
const timeLayout = "2006-01-02 15:04:05"

type Turn struct {
	ID               int64           `json:"id"`
	SessionID        string          `json:"session_id"`
	Model            string          `json:"model"`
	Status           Status          `json:"status"`
	EstimatedTokens  int             `json:"estimated_tokens"`
	EstimatedCost    decimal.Decimal `json:"estimated_cost"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	Cost             decimal.Decimal `json:"cost"`
	CreatedAt        string          `json:"created_at"`
}

// ModelTotal aggregates the turns sent to one model.
type ModelTotal struct {
	Model     string          `json:"model"`
	Completed int             `json:"completed"`
	Declined  int             `json:"declined"`
	Failed    int             `json:"failed"`
	Tokens    int             `json:"tokens"`
	Cost      decimal.Decimal `json:"cost"`
}

// RecordTurn stores one turn and returns its ID.
func (d *DB) RecordTurn(ctx context.Context, t Turn) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`INSERT INTO turns (session_id, model, status, estimated_tokens, estimated_cost,
			prompt_tokens, completion_tokens, total_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Model, string(t.Status), t.EstimatedTokens, t.EstimatedCost.String(),
		t.PromptTokens, t.CompletionTokens, t.TotalTokens, t.Cost.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording turn: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest turns first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, session_id, model, status, estimated_tokens, estimated_cost,
			prompt_tokens, completion_tokens, total_tokens, cost, created_at
		FROM turns ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t             Turn
			status        string
			estCost, cost string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Model, &status, &t.EstimatedTokens, &estCost,
			&t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &cost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Status = Status(status)
		if t.EstimatedCost, err = decimal.NewFromString(estCost); err != nil {
			return nil, fmt.Errorf("turn %d estimated cost: %w", t.ID, err)
		}
		if t.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("turn %d cost: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ModelTotals sums turns recorded at or after since, per model. A zero since
// covers the whole ledger. Costs are summed as decimals, not in SQL, so they
// stay exact.
func (d *DB) ModelTotals(ctx context.Context, since time.Time) ([]ModelTotal, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT model, status, total_tokens, cost FROM turns WHERE created_at >= ?`,
		since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("summing turns: %w", err)
	}
	defer rows.Close()

	byModel := make(map[string]*ModelTotal)
	for rows.Next() {
		var (
			model, status, cost string
			tokens              int
		)
		if err := rows.Scan(&model, &status, &tokens, &cost); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		amount, err := decimal.NewFromString(cost)
		if err != nil {
			return nil, fmt.Errorf("model %s cost: %w", model, err)
		}
		mt, ok := byModel[model]
		if !ok {
			mt = &ModelTotal{Model: model}
			byModel[model] = mt
		}
		switch Status(status) {
		case StatusCompleted:
			mt.Completed++
		case StatusDeclined:
			mt.Declined++
		case StatusFailed:
			mt.Failed++
		}
		mt.Tokens += tokens
		mt.Cost = mt.Cost.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := make([]ModelTotal, 0, len(byModel))
	for _, mt := range byModel {
		totals = append(totals, *mt)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Model < totals[j].Model })
	return totals, nil
}
