package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus is the database section of the health endpoint: ping
// latency plus a view of the connection pool.
type HealthStatus struct {
	Status       string `json:"status"`
	PingMillis   int64  `json:"ping_ms"`
	PoolOpen     int    `json:"pool_open"`
	PoolInUse    int    `json:"pool_in_use"`
	PoolIdle     int    `json:"pool_idle"`
	PoolWaits    int64  `json:"pool_waits"`
	PoolWaitMs   int64  `json:"pool_wait_ms"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// Health pings the database and reports pool statistics. A failed ping
// still returns a status payload alongside the error so the caller can
// surface both.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:     "unhealthy",
			PingMillis: time.Since(start).Milliseconds(),
		}, err
	}

	pool := db.Stats()
	return &HealthStatus{
		Status:       "healthy",
		PingMillis:   time.Since(start).Milliseconds(),
		PoolOpen:     pool.OpenConnections,
		PoolInUse:    pool.InUse,
		PoolIdle:     pool.Idle,
		PoolWaits:    pool.WaitCount,
		PoolWaitMs:   pool.WaitDuration.Milliseconds(),
		MaxOpenConns: pool.MaxOpenConnections,
	}, nil
}
