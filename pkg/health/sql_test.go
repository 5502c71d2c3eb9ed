package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestSQLCheckerHealthy(t *testing.T) {
	c := NewSQLChecker(&fakePinger{})
	result := c.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy result, got %+v", result)
	}
	if c.Type() != CheckTypeSQL {
		t.Errorf("expected type %s, got %s", CheckTypeSQL, c.Type())
	}
}

func TestSQLCheckerUnhealthy(t *testing.T) {
	c := NewSQLChecker(&fakePinger{err: errors.New("connection refused")})
	result := c.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy result")
	}
	if result.Message == "" {
		t.Error("expected a message describing the failure")
	}
}
