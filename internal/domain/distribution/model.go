// Package distribution owns the inter-unit transfer ledger: distribution
// records and their state machine, the pre-ledger request queue, and the
// stock decrements that accompany approval. Status only ever moves forward.
package distribution

import (
	"time"

	"github.com/google/uuid"
)

// Status of a distribution record. Transitions are strictly forward:
// pending → approved → delivered, or pending → cancelled. Records are never
// deleted, only terminally resolved.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Urgency of a medication request.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// Distribution is one inter-unit transfer. Medicine name and batch are
// denormalized at creation time so the record stays readable even if the
// stock row is later changed. LocationID scopes visibility: non-admin
// principals only see records owned by their home unit.
type Distribution struct {
	ID                  uuid.UUID `json:"id"`
	MedicineID          uuid.UUID `json:"medicine_id"`
	MedicineName        string    `json:"medicine_name"`
	BatchNumber         string    `json:"batch_number"`
	Quantity            int       `json:"quantity"`
	SourceLocation      string    `json:"source_location"`
	DestinationLocation string    `json:"destination_location"`
	RequesterName       string    `json:"requester_name"`
	ApproverName        string    `json:"approver_name"`
	LocationID          uuid.UUID `json:"location_id"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Request is the pre-ledger intake form a unit files when it needs
// medication. On approval it is promoted into an approved Distribution and
// removed from the queue; the promotion is one-way. MedicineID references
// the catalog; the free-text MedicineName is kept as a shim for records
// imported from systems that only captured a name.
type Request struct {
	ID            uuid.UUID `json:"id"`
	MedicineID    uuid.UUID `json:"medicine_id"`
	MedicineName  string    `json:"medicine_name"`
	Quantity      int       `json:"quantity"`
	Unit          string    `json:"unit"`
	Urgency       Urgency   `json:"urgency"`
	Justification string    `json:"justification"`
	RequesterName string    `json:"requester_name"`
	UnitID        uuid.UUID `json:"unit_id"`
	UnitName      string    `json:"unit_name"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
