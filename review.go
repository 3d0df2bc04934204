package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Batch phases. A batch is in exactly one phase; toggle/edit/commit are only
// legal while reviewing, which is what makes the capture flow single-in-flight.
const (
	phaseAnalyzing  = "analyzing"
	phaseReviewing  = "reviewing"
	phaseCommitting = "committing"
)

// ReviewBatch holds the candidates of one capture between normalization and
// commit. All mutation goes through its methods.
type ReviewBatch struct {
	ID string

	mu          sync.Mutex
	phase       string
	items       []CandidateItem
	nextLocalID int64
	policy      NormalizePolicy
}

func (b *ReviewBatch) Phase() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Items returns a snapshot of the candidate list.
func (b *ReviewBatch) Items() []CandidateItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CandidateItem, len(b.items))
	copy(out, b.items)
	return out
}

// errBatchBusy marks operations attempted while the batch is analyzing or
// committing; callers reject the re-trigger instead of queueing it.
var errBatchBusy = errors.New("batch busy")

func (b *ReviewBatch) requireReviewing() error {
	if b.phase != phaseReviewing {
		return fmt.Errorf("batch %s is %s: %w", b.ID, b.phase, errBatchBusy)
	}
	return nil
}

func (b *ReviewBatch) find(localID int64) (*CandidateItem, error) {
	for i := range b.items {
		if b.items[i].LocalID == localID {
			return &b.items[i], nil
		}
	}
	return nil, fmt.Errorf("no candidate with local id %d", localID)
}

// Toggle flips selection on exactly one candidate.
func (b *ReviewBatch) Toggle(localID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireReviewing(); err != nil {
		return err
	}
	item, err := b.find(localID)
	if err != nil {
		return err
	}
	item.Selected = !item.Selected
	return nil
}

// Edit replaces one field of one candidate. Invalid values are rejected and
// the previous value retained; normalization is not re-run.
func (b *ReviewBatch) Edit(localID int64, field, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireReviewing(); err != nil {
		return err
	}
	item, err := b.find(localID)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	switch field {
	case "name":
		if value == "" {
			return fmt.Errorf("name must not be empty")
		}
		item.Name = value
	case "category":
		if value == "" {
			return fmt.Errorf("category must not be empty")
		}
		item.Category = value
	case "unit":
		if value == "" {
			return fmt.Errorf("unit must not be empty")
		}
		item.Unit = value
	case "quantity":
		quantity, err := strconv.ParseFloat(value, 64)
		if err != nil || quantity <= 0 {
			return fmt.Errorf("quantity %q must be a positive number", value)
		}
		item.Quantity = quantity
	case "expiration_date":
		// Empty clears the date.
		if value != "" && validISODate(value) == "" {
			return fmt.Errorf("expiration_date %q must be an ISO date", value)
		}
		item.ExpirationDate = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// AddBlank appends a manual-entry candidate with policy defaults.
func (b *ReviewBatch) AddBlank() (CandidateItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireReviewing(); err != nil {
		return CandidateItem{}, err
	}
	item := b.policy.BlankCandidate()
	item.LocalID = b.nextLocalID
	b.nextLocalID++
	b.items = append(b.items, item)
	return item, nil
}

// Commit persists the selected candidates into one refrigerator as a single
// batch insert. With nothing selected it fails with ErrNothingSelected and
// never touches the store. A store rejection comes back as *CommitError with
// the candidate list intact so commit can be retried in place.
func (b *ReviewBatch) Commit(db *sql.DB, kjoleskapID string, warnDays int) ([]FoodItem, error) {
	b.mu.Lock()
	if err := b.requireReviewing(); err != nil {
		b.mu.Unlock()
		return nil, err
	}

	var records []FoodItem
	for _, item := range b.items {
		if !item.Selected {
			continue
		}
		records = append(records, FoodItem{
			KjoleskapID:    kjoleskapID,
			Name:           item.Name,
			Category:       item.Category,
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			ExpirationDate: item.ExpirationDate,
			Status:         ExpiryStatusAt(item.ExpirationDate, warnDays, time.Now()),
		})
	}
	if len(records) == 0 {
		b.mu.Unlock()
		return nil, ErrNothingSelected
	}

	b.phase = phaseCommitting
	b.mu.Unlock()

	inserted, err := InsertFoodItems(db, records)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.phase = phaseReviewing
		return nil, &CommitError{Err: err}
	}
	b.items = nil
	return inserted, nil
}

// BatchRegistry tracks live review batches by id. Discarding removes the
// batch; an extraction result arriving for a removed id is dropped.
type BatchRegistry struct {
	mu      sync.Mutex
	batches map[string]*ReviewBatch
	policy  NormalizePolicy
}

func NewBatchRegistry(policy NormalizePolicy) *BatchRegistry {
	return &BatchRegistry{
		batches: make(map[string]*ReviewBatch),
		policy:  policy,
	}
}

// Begin registers a fresh batch in the analyzing phase and returns it.
func (r *BatchRegistry) Begin() *ReviewBatch {
	batch := &ReviewBatch{
		ID:          uuid.NewString(),
		phase:       phaseAnalyzing,
		nextLocalID: 1,
		policy:      r.policy,
	}
	r.mu.Lock()
	r.batches[batch.ID] = batch
	r.mu.Unlock()
	return batch
}

// CompleteAnalysis installs the normalized candidates and moves the batch to
// reviewing. Returns false when the batch was discarded while the extraction
// call was outstanding; the caller drops the result.
func (r *BatchRegistry) CompleteAnalysis(id string, items []CandidateItem) bool {
	r.mu.Lock()
	batch, ok := r.batches[id]
	r.mu.Unlock()
	if !ok {
		return false
	}

	batch.mu.Lock()
	defer batch.mu.Unlock()
	batch.items = items
	batch.nextLocalID = int64(len(items) + 1)
	batch.phase = phaseReviewing
	return true
}

func (r *BatchRegistry) Get(id string) (*ReviewBatch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	return batch, ok
}

// Discard is the unconditional client-side reset: the batch disappears
// regardless of phase. It does not cancel an in-flight extraction call.
func (r *BatchRegistry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return false
	}
	delete(r.batches, id)
	return true
}
