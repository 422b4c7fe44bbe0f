package quorum

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/redis"
	"go.uber.org/zap"
)

// DefaultTTL bounds staleness of a cached quorum snapshot. Attendance changes
// invalidate eagerly, so the TTL only matters when an invalidation was lost.
const DefaultTTL = time.Hour

// Snapshot is the derived quorum document served to clients. It is always
// recomputable from attendance rows; losing the cache loses nothing.
type Snapshot struct {
	Community          string          `json:"community"`
	PropertiesPresent  int             `json:"properties_present"`
	ActiveProperties   int             `json:"active_properties"`
	PresentCoefficient decimal.Decimal `json:"present_coefficient"`
	TotalCoefficient   decimal.Decimal `json:"total_coefficient"`
	Percentage         float64         `json:"percentage"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// Key is the cache key for one community's quorum snapshot.
func Key(taxID string) string {
	return fmt.Sprintf("quorum:%s", taxID)
}

// Service computes and caches quorum. Redis is the shared cache; an in-process
// map keeps serving snapshots when Redis is unavailable.
type Service struct {
	Redis  *redis.Client
	Events *events.Publisher
	Logger *zap.Logger
	TTL    time.Duration

	local *xsync.Map[string, Snapshot]
}

func NewService(redisClient *redis.Client, publisher *events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		Redis:  redisClient,
		Events: publisher,
		Logger: logger.With(zap.String("component", "quorum")),
		TTL:    DefaultTTL,
		local:  xsync.NewMap[string, Snapshot](),
	}
}

// Get returns the cached snapshot for the community, recomputing on a miss.
// A miss is a read, not a change: no quorum.updated is published.
func (s *Service) Get(ctx context.Context, store *communitydb.DB) (*Snapshot, error) {
	if snap := s.cached(ctx, store.TaxID); snap != nil {
		return snap, nil
	}
	return s.refresh(ctx, store)
}

// Recompute rebuilds the snapshot from attendance rows, refreshes the caches
// and notifies observers. Call it after attendance changes; reads go through
// Get.
func (s *Service) Recompute(ctx context.Context, store *communitydb.DB) (*Snapshot, error) {
	snap, err := s.refresh(ctx, store)
	if err != nil {
		return nil, err
	}

	s.Events.Publish(ctx, store.TaxID, events.TypeQuorumUpdated, events.QuorumPayload{
		PropertiesPresent: snap.PropertiesPresent,
		CoefficientSum:    snap.PresentCoefficient,
		Percentage:        snap.Percentage,
		ComputedAt:        snap.ComputedAt,
	})
	s.Logger.Debug("Quorum recomputed",
		zap.String("community", store.TaxID),
		zap.Int("properties_present", snap.PropertiesPresent),
		zap.Float64("percentage", snap.Percentage))
	return snap, nil
}

// refresh computes the snapshot from attendance rows and stores it in both
// caches without notifying anyone.
func (s *Service) refresh(ctx context.Context, store *communitydb.DB) (*Snapshot, error) {
	counts, err := store.AttendanceCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute quorum for %s: %w", store.TaxID, err)
	}

	snap := FromCounts(store.TaxID, counts, time.Now().UTC())
	s.cache(ctx, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read recomputes.
func (s *Service) Invalidate(ctx context.Context, taxID string) {
	s.local.Delete(taxID)
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, Key(taxID)); err != nil {
			s.Logger.Warn("Failed to drop quorum cache entry",
				zap.String("community", taxID), zap.Error(err))
		}
	}
}

// FromCounts derives the snapshot from raw attendance aggregates. Pure; the
// percentage is coefficient-weighted and guarded against an empty community.
func FromCounts(taxID string, c communitydb.AttendanceCounts, at time.Time) *Snapshot {
	snap := &Snapshot{
		Community:          taxID,
		PropertiesPresent:  c.PropertiesPresent,
		ActiveProperties:   c.ActiveProperties,
		PresentCoefficient: c.PresentSum,
		TotalCoefficient:   c.TotalSum,
		ComputedAt:         at,
	}
	if c.TotalSum.IsPositive() {
		pct, _ := c.PresentSum.Mul(decimal.NewFromInt(100)).
			Div(c.TotalSum).Round(2).Float64()
		snap.Percentage = pct
	}
	return snap
}

func (s *Service) cached(ctx context.Context, taxID string) *Snapshot {
	if s.Redis != nil {
		raw, err := s.Redis.Get(ctx, Key(taxID))
		switch {
		case err == nil:
			var snap Snapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap
			}
			s.Logger.Warn("Discarding malformed quorum cache entry", zap.String("community", taxID))
		case !redis.IsNil(err):
			s.Logger.Warn("Quorum cache read failed, using local copy",
				zap.String("community", taxID), zap.Error(err))
			if snap, ok := s.local.Load(taxID); ok && time.Since(snap.ComputedAt) < s.TTL {
				return &snap
			}
		}
	}
	return nil
}

func (s *Service) cache(ctx context.Context, snap *Snapshot) {
	s.local.Store(snap.Community, *snap)
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.Logger.Warn("Failed to marshal quorum snapshot", zap.Error(err))
		return
	}
	if err := s.Redis.SetEx(ctx, Key(snap.Community), data, s.TTL); err != nil {
		s.Logger.Warn("Failed to cache quorum snapshot",
			zap.String("community", snap.Community), zap.Error(err))
	}
}
