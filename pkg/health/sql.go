package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is satisfied by any store exposing a lightweight liveness
// probe; storage.Store.Ping fits this contract.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SQLChecker performs a liveness check against the relational store via
// its Ping method, the database/sql analogue of TCPChecker's raw dial.
type SQLChecker struct {
	Store Pinger

	// Timeout bounds the Ping call (default: 5 seconds).
	Timeout time.Duration
}

// NewSQLChecker creates a SQLChecker against store.
func NewSQLChecker(store Pinger) *SQLChecker {
	return &SQLChecker{Store: store, Timeout: 5 * time.Second}
}

// Check performs the liveness probe.
func (c *SQLChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if err := c.Store.Ping(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("store ping failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   "store ping succeeded",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type.
func (c *SQLChecker) Type() CheckType {
	return CheckTypeSQL
}

// WithTimeout sets the probe timeout.
func (c *SQLChecker) WithTimeout(timeout time.Duration) *SQLChecker {
	c.Timeout = timeout
	return c
}
