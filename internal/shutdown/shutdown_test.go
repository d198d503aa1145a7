package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdownRunsInReverseOrder(t *testing.T) {
	c := NewCoordinator(nopLogger())

	var order []string
	for _, name := range []string{"store", "recorder", "server"} {
		name := name
		c.Register(name, StopperFunc(func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}))
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	want := []string{"server", "recorder", "store"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v, want %v", order, want)
		}
	}
}

func TestShutdownContinuesPastFailure(t *testing.T) {
	c := NewCoordinator(nopLogger())

	var stopped []string
	c.Register("first", StopperFunc(func(ctx context.Context) error {
		stopped = append(stopped, "first")
		return nil
	}))
	c.Register("broken", StopperFunc(func(ctx context.Context) error {
		return errors.New("stuck")
	}))

	err := c.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected error from broken component")
	}
	if len(stopped) != 1 || stopped[0] != "first" {
		t.Errorf("later registrations must still stop: %v", stopped)
	}
}

func TestShutdownStopsAtDeadline(t *testing.T) {
	c := NewCoordinator(nopLogger())

	reached := false
	c.Register("never-reached", StopperFunc(func(ctx context.Context) error {
		reached = true
		return nil
	}))
	c.Register("slow", StopperFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Shutdown(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
	if reached {
		t.Error("components past the deadline must be skipped")
	}
}
