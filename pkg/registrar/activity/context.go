package activity

import (
	"context"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/redis"
	"github.com/vecindia/asambleax/pkg/tenant"
	"go.uber.org/zap"
)

type Context struct {
	Logger *zap.Logger
	Router *tenant.Router
	// For duplicate-submission locks
	RedisClient *redis.Client
	// For publishing real-time events
	Events *events.Publisher
	// ReplicationMaxParallelism allows overriding the default fan-out pool size.
	ReplicationMaxParallelism int
	replicationPoolOnce       sync.Once
	replicationPool           pond.Pool
}

// Store resolves the tenant database for a community tax id.
func (c *Context) Store(ctx context.Context, community string) (*communitydb.DB, error) {
	return c.Router.Resolve(ctx, community)
}

// replicationWorkerPool returns the shared pool that bounds how many property
// votes one participant replication writes concurrently.
func (c *Context) replicationWorkerPool() pond.Pool {
	c.replicationPoolOnce.Do(func() {
		maxWorkers := ReplicationParallelism(c.ReplicationMaxParallelism)
		c.replicationPool = pond.NewPool(maxWorkers)
	})
	return c.replicationPool
}

// ReplicationParallelism caps the fan-out so one attendee with many properties
// cannot drain the tenant pool.
func ReplicationParallelism(override int) int {
	if override > 0 {
		if override > 16 {
			return 16
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}
