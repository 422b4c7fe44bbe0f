package admin

import "time"

// Community is one condominium tenant in the control-plane catalog. Its data
// lives in the dedicated database named by DbName; the catalog row only routes.
type Community struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	DbName    string    `json:"db_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
