package health

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

// SystemdUnits reads unit states from systemd over D-Bus. The connection is
// opened on first use.
type SystemdUnits struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

var _ UnitStates = (*SystemdUnits)(nil)

func (s *SystemdUnits) connect(ctx context.Context) (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// State maps systemd's ActiveState to the states the checker expects:
// active becomes running, the others are passed through.
func (s *SystemdUnits) State(ctx context.Context, service string) (string, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	unit := service
	if !strings.HasSuffix(unit, ".service") {
		unit += ".service"
	}
	prop, err := conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	state, _ := prop.Value.Value().(string)
	switch state {
	case "active":
		return StateRunning, nil
	case "":
		return "unknown", nil
	default:
		return state, nil
	}
}

// ReloadOrRestart asks systemd to reload service, or restart it when it
// cannot reload, and waits for the job to finish.
func (s *SystemdUnits) ReloadOrRestart(ctx context.Context, service string) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	unit := service
	if !strings.HasSuffix(unit, ".service") {
		unit += ".service"
	}
	done := make(chan string, 1)
	if _, err := conn.ReloadOrRestartUnitContext(ctx, unit, "replace", done); err != nil {
		return fmt.Errorf("failed to reload %s: %w", unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("reloading %s: job %s", unit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the D-Bus connection.
func (s *SystemdUnits) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
