package community

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attendee is a person registered at an assembly, authorized to vote on behalf
// of one or more properties. AccessCode is generated at registration and used
// by the inbound messaging channel to identify the attendee.
type Attendee struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Document   string    `json:"document,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	AccessCode string    `json:"access_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Properties is populated on detail reads.
	Properties []AttendeeProperty `json:"properties,omitempty"`
}

// AttendeeProperty links an attendee to one property they represent, with the
// coefficient share they carry for that property and an optional proxy document.
type AttendeeProperty struct {
	AttendeeID    int64           `json:"attendee_id"`
	PropertyID    int64           `json:"property_id"`
	Coefficient   decimal.Decimal `json:"coefficient"`
	ProxyDocument string          `json:"proxy_document,omitempty"`
}
