package community

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is a unit (apartment, parking lot, storage room) carrying an
// ownership coefficient expressed as a percentage of the whole building.
type Property struct {
	ID            int64           `json:"id"`
	Nomenclature  string          `json:"nomenclature"`
	Coefficient   decimal.Decimal `json:"coefficient"`
	Kind          string          `json:"kind"`
	OwnerDocument string          `json:"owner_document,omitempty"`
	OwnerName     string          `json:"owner_name,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
