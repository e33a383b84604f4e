// Package dispensation records medication released directly to patients.
// Each dispensation decrements stock under the same sufficiency rule as
// distribution approval, but has no multi-step lifecycle: the release either
// happens or it does not.
package dispensation

import (
	"time"

	"github.com/google/uuid"
)

type Dispensation struct {
	ID              uuid.UUID `json:"id"`
	MedicineID      uuid.UUID `json:"medicine_id"`
	MedicineName    string    `json:"medicine_name"`
	BatchNumber     string    `json:"batch_number"`
	Quantity        int       `json:"quantity"`
	PatientName     string    `json:"patient_name"`
	PatientDocument string    `json:"patient_document"`
	DispenserName   string    `json:"dispenser_name"`
	LocationID      uuid.UUID `json:"location_id"`
	CreatedAt       time.Time `json:"created_at"`
}
