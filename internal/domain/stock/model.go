// Package stock manages the medication inventory of the municipal health
// network: one record per medication batch per owning location, with a
// derived availability status that is recomputed on every quantity or
// expiration change.
package stock

import (
	"time"

	"github.com/google/uuid"
)

// Status is the derived availability classification of a medication record.
type Status string

const (
	StatusAvailable Status = "available"
	StatusLow       Status = "low"
	StatusCritical  Status = "critical"
	StatusExpired   Status = "expired"
)

// Medication is a stock record owned by a health unit.
type Medication struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	BatchNumber  string    `json:"batch_number"`
	Expiration   time.Time `json:"expiration"`
	Manufacturer string    `json:"manufacturer"`
	Quantity     int       `json:"quantity"`
	MinQuantity  int       `json:"min_quantity"`
	Unit         string    `json:"unit"`
	LocationID   uuid.UUID `json:"location_id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Movement is an audit entry for a manual quantity adjustment. Distribution
// and dispensation keep their own records; movements exist so ad-hoc
// corrections are not invisible.
type Movement struct {
	ID           uuid.UUID `json:"id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Delta        int       `json:"delta"`
	Reason       string    `json:"reason"`
	ActorName    string    `json:"actor_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// ComputeStatus derives the availability status from quantity, threshold and
// expiration. Pure and total: same inputs always produce the same result.
// horizonDays widens the expiry boundary so near-expiry batches can be
// flagged as expired ahead of the calendar date; 0 means strict comparison.
// Callers never persist a status they did not obtain from here.
func ComputeStatus(quantity, minQuantity int, expiration, today time.Time, horizonDays int) Status {
	boundary := today.AddDate(0, 0, horizonDays)
	if !expiration.After(boundary) {
		return StatusExpired
	}
	if quantity == 0 {
		return StatusCritical
	}
	if quantity <= minQuantity {
		return StatusLow
	}
	return StatusAvailable
}
