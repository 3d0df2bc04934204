package main

import "time"

// Item status values maintained by the expiry sweep.
const (
	StatusFresh    = "fresh"
	StatusExpiring = "expiring"
	StatusExpired  = "expired"
)

type Kjoleskap struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	IsShared  bool      `json:"is_shared"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FoodItem struct {
	ID             string    `json:"id"`
	KjoleskapID    string    `json:"kjoleskap_id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit"`
	ExpirationDate string    `json:"expiration_date,omitempty"` // ISO date "2006-01-02", empty when unset
	Status         string    `json:"status"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CandidateItem is one normalized extraction guess. It lives only inside a
// review batch and is never persisted as-is; committing a selected candidate
// produces a FoodItem row.
type CandidateItem struct {
	LocalID        int64   `json:"local_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	ExpirationDate string  `json:"expiration_date,omitempty"`
	Selected       bool    `json:"selected"`
}

// NormalizePolicy holds the documented defaults applied to extraction output.
// A DefaultExpiryDays of 0 leaves missing expiration dates unset.
type NormalizePolicy struct {
	PlaceholderName   string
	DefaultCategory   string
	DefaultUnit       string
	DefaultExpiryDays int
}

// BlankCandidate returns a manual-entry candidate carrying only policy defaults.
func (p NormalizePolicy) BlankCandidate() CandidateItem {
	return CandidateItem{
		Name:     p.PlaceholderName,
		Category: p.DefaultCategory,
		Quantity: 1,
		Unit:     p.DefaultUnit,
		Selected: true,
	}
}

// ExpiryStatusAt classifies an ISO expiration date against now. Items without
// a date are always fresh.
func ExpiryStatusAt(expirationDate string, warnDays int, now time.Time) string {
	if expirationDate == "" {
		return StatusFresh
	}
	expires, err := time.ParseInLocation("2006-01-02", expirationDate, now.Location())
	if err != nil {
		return StatusFresh
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case expires.Before(today):
		return StatusExpired
	case !expires.After(today.AddDate(0, 0, warnDays)):
		return StatusExpiring
	default:
		return StatusFresh
	}
}
