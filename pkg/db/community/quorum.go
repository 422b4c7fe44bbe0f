package community

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AttendanceCounts is the raw input for a quorum snapshot: how many active
// properties currently have at least one registered attendee, the sum of their
// coefficients, and the totals across all active properties.
type AttendanceCounts struct {
	PropertiesPresent int
	PresentSum        decimal.Decimal
	ActiveProperties  int
	TotalSum          decimal.Decimal
}

// AttendanceCounts computes the attendance aggregates in one round trip.
func (db *DB) AttendanceCounts(ctx context.Context) (AttendanceCounts, error) {
	if err := assertJoinAllowed("properties", "attendee_properties"); err != nil {
		return AttendanceCounts{}, err
	}

	var c AttendanceCounts
	err := db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE represented),
			COALESCE(SUM(coefficient) FILTER (WHERE represented), 0),
			COUNT(*),
			COALESCE(SUM(coefficient), 0)
		FROM (
			SELECT p.coefficient,
			       EXISTS(SELECT 1 FROM attendee_properties ap WHERE ap.property_id = p.id) AS represented
			FROM properties p
			WHERE p.active
		) s
	`).Scan(&c.PropertiesPresent, &c.PresentSum, &c.ActiveProperties, &c.TotalSum)
	if err != nil {
		return AttendanceCounts{}, fmt.Errorf("attendance counts: %w", err)
	}
	return c, nil
}
