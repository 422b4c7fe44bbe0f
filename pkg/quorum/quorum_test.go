package quorum

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFromCountsWeightsByCoefficient(t *testing.T) {
	counts := communitydb.AttendanceCounts{
		PropertiesPresent: 3,
		PresentSum:        dec("42.50"),
		ActiveProperties:  10,
		TotalSum:          dec("100.00"),
	}
	at := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	snap := FromCounts("900111222", counts, at)

	require.Equal(t, "900111222", snap.Community)
	require.Equal(t, 3, snap.PropertiesPresent)
	require.Equal(t, 10, snap.ActiveProperties)
	require.InDelta(t, 42.5, snap.Percentage, 0.001)
	require.Equal(t, at, snap.ComputedAt)
}

func TestFromCountsEmptyCommunity(t *testing.T) {
	snap := FromCounts("900111222", communitydb.AttendanceCounts{}, time.Now().UTC())

	require.Zero(t, snap.Percentage)
	require.Zero(t, snap.PropertiesPresent)
	require.True(t, snap.TotalCoefficient.IsZero())
}

func TestFromCountsRoundsToTwoDecimals(t *testing.T) {
	counts := communitydb.AttendanceCounts{
		PropertiesPresent: 1,
		PresentSum:        dec("1.00"),
		ActiveProperties:  3,
		TotalSum:          dec("3.00"),
	}

	snap := FromCounts("900111222", counts, time.Now().UTC())

	require.InDelta(t, 33.33, snap.Percentage, 0.001)
}

func TestKeyIsPerCommunity(t *testing.T) {
	require.Equal(t, "quorum:900111222", Key("900111222"))
	require.NotEqual(t, Key("900111222"), Key("900333444"))
}
