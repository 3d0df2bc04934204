package main

import (
	"errors"
	"testing"
)

func newReviewingBatch(t *testing.T, items []CandidateItem) (*BatchRegistry, *ReviewBatch) {
	t.Helper()
	registry := NewBatchRegistry(testPolicy())
	batch := registry.Begin()
	if !registry.CompleteAnalysis(batch.ID, items) {
		t.Fatalf("CompleteAnalysis failed for live batch")
	}
	return registry, batch
}

func twoCandidates() []CandidateItem {
	return []CandidateItem{
		{LocalID: 1, Name: "Eple", Category: "Frukt", Quantity: 3, Unit: "stk", Selected: true},
		{LocalID: 2, Name: "Melk", Category: "Meieriprodukter", Quantity: 1, Unit: "l", Selected: true},
	}
}

func TestToggleIsIdempotentPair(t *testing.T) {
	_, batch := newReviewingBatch(t, twoCandidates())

	if err := batch.Toggle(1); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	items := batch.Items()
	if items[0].Selected {
		t.Fatalf("expected candidate 1 deselected")
	}
	if !items[1].Selected {
		t.Fatalf("toggle must not affect other candidates")
	}

	if err := batch.Toggle(1); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !batch.Items()[0].Selected {
		t.Fatalf("double toggle must restore original state")
	}

	if err := batch.Toggle(99); err == nil {
		t.Fatalf("expected error for unknown local id")
	}
}

func TestEditValidation(t *testing.T) {
	_, batch := newReviewingBatch(t, twoCandidates())

	if err := batch.Edit(1, "quantity", "5"); err != nil {
		t.Fatalf("Edit quantity failed: %v", err)
	}
	if got := batch.Items()[0].Quantity; got != 5 {
		t.Fatalf("expected quantity 5, got %v", got)
	}

	// Invalid edits are rejected and the previous value retained.
	for _, bad := range []string{"abc", "-2", "0", ""} {
		if err := batch.Edit(1, "quantity", bad); err == nil {
			t.Fatalf("expected rejection of quantity %q", bad)
		}
	}
	if got := batch.Items()[0].Quantity; got != 5 {
		t.Fatalf("rejected edit must retain previous value, got %v", got)
	}

	if err := batch.Edit(2, "name", "Lettmelk"); err != nil {
		t.Fatalf("Edit name failed: %v", err)
	}
	if err := batch.Edit(2, "name", "   "); err == nil {
		t.Fatalf("expected rejection of blank name")
	}
	if got := batch.Items()[1].Name; got != "Lettmelk" {
		t.Fatalf("expected name Lettmelk, got %q", got)
	}

	if err := batch.Edit(2, "expiration_date", "2026-09-04"); err != nil {
		t.Fatalf("Edit expiration failed: %v", err)
	}
	if err := batch.Edit(2, "expiration_date", "tomorrow"); err == nil {
		t.Fatalf("expected rejection of non-ISO date")
	}
	if err := batch.Edit(2, "expiration_date", ""); err != nil {
		t.Fatalf("clearing expiration should be allowed: %v", err)
	}

	if err := batch.Edit(1, "color", "red"); err == nil {
		t.Fatalf("expected rejection of unknown field")
	}
}

func TestAddBlankUsesPolicyDefaults(t *testing.T) {
	_, batch := newReviewingBatch(t, twoCandidates())

	item, err := batch.AddBlank()
	if err != nil {
		t.Fatalf("AddBlank failed: %v", err)
	}
	if item.LocalID != 3 {
		t.Fatalf("expected fresh local id 3, got %d", item.LocalID)
	}
	if item.Name != "Ukjent vare" || item.Category != "Annet" || item.Unit != "stk" || item.Quantity != 1 {
		t.Fatalf("unexpected blank candidate: %+v", item)
	}
	if !item.Selected {
		t.Fatalf("blank candidate must be selected")
	}
	if len(batch.Items()) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(batch.Items()))
	}
}

func TestCommitNothingSelected(t *testing.T) {
	db := newTestDB(t)
	k, _ := CreateKjoleskap(db, "Hjemme", "user-1", false, true)
	_, batch := newReviewingBatch(t, twoCandidates())

	if err := batch.Toggle(1); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if err := batch.Toggle(2); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	_, err := batch.Commit(db, k.ID, 3)
	if !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}

	// The guard fires before any store call.
	stored, err := GetFoodItemsByKjoleskap(db, k.ID)
	if err != nil {
		t.Fatalf("GetFoodItemsByKjoleskap failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected no store write, got %d rows", len(stored))
	}
	if batch.Phase() != phaseReviewing {
		t.Fatalf("batch must stay reviewable, phase=%s", batch.Phase())
	}
}

func TestCommitSelectedSubset(t *testing.T) {
	db := newTestDB(t)
	k, _ := CreateKjoleskap(db, "Hjemme", "user-1", false, true)

	items := twoCandidates()
	items = append(items, CandidateItem{LocalID: 3, Name: "Sjokolade", Category: "Snack", Quantity: 1, Unit: "stk", Selected: true})
	_, batch := newReviewingBatch(t, items)

	if err := batch.Toggle(3); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if err := batch.Edit(2, "quantity", "5"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	records, err := batch.Commit(db, k.ID, 3)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 committed records, got %d", len(records))
	}
	for _, record := range records {
		if record.KjoleskapID != k.ID {
			t.Fatalf("record not tagged with kjoleskap: %+v", record)
		}
		if record.ID == "" {
			t.Fatalf("expected server-assigned id reflected back: %+v", record)
		}
	}
	if records[1].Quantity != 5 {
		t.Fatalf("expected edited quantity 5, got %v", records[1].Quantity)
	}

	stored, err := GetFoodItemsByKjoleskap(db, k.ID)
	if err != nil {
		t.Fatalf("GetFoodItemsByKjoleskap failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected exactly the selected subset stored, got %d", len(stored))
	}

	if len(batch.Items()) != 0 {
		t.Fatalf("successful commit must clear the candidate list")
	}
}

func TestCommitStoreRejectionPreservesCandidates(t *testing.T) {
	db := newTestDB(t)
	k, _ := CreateKjoleskap(db, "Hjemme", "user-1", false, true)
	_, batch := newReviewingBatch(t, twoCandidates())

	// Close the DB so the batch insert is rejected.
	_ = db.Close()

	_, err := batch.Commit(db, k.ID, 3)
	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if len(batch.Items()) != 2 {
		t.Fatalf("failed commit must preserve candidates, got %d", len(batch.Items()))
	}
	if batch.Phase() != phaseReviewing {
		t.Fatalf("failed commit must return batch to reviewing, phase=%s", batch.Phase())
	}
}

func TestOperationsRejectedWhileAnalyzing(t *testing.T) {
	registry := NewBatchRegistry(testPolicy())
	batch := registry.Begin()

	if err := batch.Toggle(1); !errors.Is(err, errBatchBusy) {
		t.Fatalf("expected errBatchBusy while analyzing, got %v", err)
	}
	if err := batch.Edit(1, "name", "Eple"); !errors.Is(err, errBatchBusy) {
		t.Fatalf("expected errBatchBusy while analyzing, got %v", err)
	}
	if _, err := batch.AddBlank(); !errors.Is(err, errBatchBusy) {
		t.Fatalf("expected errBatchBusy while analyzing, got %v", err)
	}
	if _, err := batch.Commit(nil, "k1", 3); !errors.Is(err, errBatchBusy) {
		t.Fatalf("expected errBatchBusy while analyzing, got %v", err)
	}
}

func TestDiscardedBatchDropsLateExtraction(t *testing.T) {
	registry := NewBatchRegistry(testPolicy())
	batch := registry.Begin()

	if !registry.Discard(batch.ID) {
		t.Fatalf("Discard failed for live batch")
	}
	if registry.CompleteAnalysis(batch.ID, twoCandidates()) {
		t.Fatalf("late extraction result for a discarded batch must be dropped")
	}
	if _, ok := registry.Get(batch.ID); ok {
		t.Fatalf("discarded batch must not be retrievable")
	}
	if registry.Discard(batch.ID) {
		t.Fatalf("second discard must report unknown batch")
	}
}
