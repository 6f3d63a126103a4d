package memory

import (
	"context"
	"errors"
	"testing"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

func TestProfileSummaryStore_InsertAndGet(t *testing.T) {
	store := NewProfileSummaryStore()
	ctx := context.Background()

	for _, ps := range []*domain.ProfileSummary{
		{RunID: "r2", ProfileName: "a", TotalTrades: 1},
		{RunID: "r1", ProfileName: "b", TotalTrades: 2, ExitReasons: map[string]int{"tp1": 2}},
		{RunID: "r1", ProfileName: "a", TotalTrades: 3},
	} {
		if err := store.Insert(ctx, ps); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || got[0].ProfileName != "a" || got[1].ProfileName != "b" {
		t.Fatalf("unexpected summaries: %+v", got)
	}

	got[1].ExitReasons["tp1"] = 0
	again, _ := store.GetByRun(ctx, "r1")
	if again[1].ExitReasons["tp1"] != 2 {
		t.Error("store leaked exit reason map")
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 3 || all[2].RunID != "r2" {
		t.Errorf("GetAll order wrong: %+v", all)
	}
}

func TestProfileSummaryStore_DuplicateKey(t *testing.T) {
	store := NewProfileSummaryStore()
	ctx := context.Background()

	ps := &domain.ProfileSummary{RunID: "r1", ProfileName: "a"}
	if err := store.Insert(ctx, ps); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, ps); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.ProfileSummary{ProfileName: "a"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
