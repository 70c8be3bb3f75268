package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordAndListTurns(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	id, err := d.RecordTurn(ctx, Turn{
		SessionID:        "s1",
		Model:            "gpt-3.5-turbo",
		Status:           StatusCompleted,
		EstimatedTokens:  17,
		EstimatedCost:    dec("0.000034"),
		PromptTokens:     17,
		CompletionTokens: 9,
		TotalTokens:      26,
		Cost:             dec("0.000052"),
	})
	if err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	turns, err := d.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	got := turns[0]
	if got.ID != id || got.SessionID != "s1" || got.Status != StatusCompleted {
		t.Errorf("unexpected turn %+v", got)
	}
	if !got.Cost.Equal(dec("0.000052")) || !got.EstimatedCost.Equal(dec("0.000034")) {
		t.Errorf("costs did not round-trip exactly: %s / %s", got.EstimatedCost, got.Cost)
	}
	if got.TotalTokens != 26 {
		t.Errorf("TotalTokens = %d, want 26", got.TotalTokens)
	}
	if got.CreatedAt == "" {
		t.Error("expected created_at to be set")
	}
}

func TestRecent_NewestFirstAndLimit(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		if _, err := d.RecordTurn(ctx, Turn{SessionID: "s", Model: m, Status: StatusDeclined}); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}
	turns, err := d.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 2 || turns[0].Model != "c" || turns[1].Model != "b" {
		t.Errorf("unexpected order: %+v", turns)
	}
}

func TestRecordTurn_RejectsUnknownStatus(t *testing.T) {
	d := openTestDB(t)
	if _, err := d.RecordTurn(context.Background(), Turn{SessionID: "s", Model: "m", Status: "pending"}); err == nil {
		t.Error("expected CHECK constraint failure")
	}
}

func TestModelTotals(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	records := []Turn{
		{SessionID: "s", Model: "gpt-4", Status: StatusCompleted, TotalTokens: 100, Cost: dec("0.003")},
		{SessionID: "s", Model: "gpt-4", Status: StatusCompleted, TotalTokens: 200, Cost: dec("0.006")},
		{SessionID: "s", Model: "gpt-4", Status: StatusDeclined, EstimatedTokens: 50},
		{SessionID: "s", Model: "gpt-3.5-turbo", Status: StatusFailed},
	}
	for _, r := range records {
		if _, err := d.RecordTurn(ctx, r); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	totals, err := d.ModelTotals(ctx, time.Time{})
	if err != nil {
		t.Fatalf("ModelTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 models, got %d", len(totals))
	}
	if totals[0].Model != "gpt-3.5-turbo" || totals[0].Failed != 1 {
		t.Errorf("unexpected first total %+v", totals[0])
	}
	g := totals[1]
	if g.Completed != 2 || g.Declined != 1 || g.Tokens != 300 || !g.Cost.Equal(dec("0.009")) {
		t.Errorf("unexpected gpt-4 total %+v", g)
	}

	future, err := d.ModelTotals(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ModelTotals: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("expected no totals after now, got %d", len(future))
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.Close()

	// reopening runs the idempotent schema again
	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	d.Close()
}
