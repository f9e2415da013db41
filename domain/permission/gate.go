// Package permission checks camera access independently of decoding.
package permission

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/soocke/pixel-scan-go/domain/camera"
)

// Status is the camera permission state.
type Status int

const (
	Unknown Status = iota
	Granted
	Denied
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Listener is called after every status change.
type Listener func(prev, next Status)

// Gate probes camera access by briefly opening a stream through the shared token.
type Gate struct {
	token  *camera.Token
	logger *slog.Logger

	mu          sync.Mutex
	constraints camera.Constraints
	status      Status
	listeners   []Listener
}

// NewGate returns a gate probing through token with the given constraints.
func NewGate(token *camera.Token, constraints camera.Constraints, logger *slog.Logger) *Gate {
	return &Gate{token: token, constraints: constraints, logger: logger}
}

// Status returns the last known permission status.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// SetConstraints replaces the constraints used by later probes.
func (g *Gate) SetConstraints(c camera.Constraints) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.constraints = c
}

// AddListener registers l for status changes.
func (g *Gate) AddListener(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// Request returns Granted or Denied. A cached grant is returned without
// probing unless force is set. Acquisition errors map to Denied. When ctx
// ends before the probe completes the cached status is left untouched and
// Unknown is returned.
func (g *Gate) Request(ctx context.Context, force bool) Status {
	if !force {
		if s := g.Status(); s == Granted {
			return s
		}
	}
	status, err := g.probe(ctx)
	if status == Unknown {
		if g.logger != nil {
			g.logger.Debug("permission probe abandoned", "error", err)
		}
		return Unknown
	}
	if err != nil && g.logger != nil {
		g.logger.Info("camera permission denied", "error", err)
	}
	g.set(status)
	return status
}

func (g *Gate) probe(ctx context.Context) (Status, error) {
	if g.token == nil {
		return Denied, camera.ErrNoDevice
	}
	lease, err := g.token.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Unknown, err
		}
		return Denied, err
	}
	defer lease.Release()
	g.mu.Lock()
	constraints := g.constraints
	g.mu.Unlock()
	stream, err := lease.Open(ctx, constraints)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Unknown, err
		}
		return Denied, err
	}
	if err := stream.Close(); err != nil && g.logger != nil {
		g.logger.Warn("permission probe close", "error", err)
	}
	return Granted, nil
}

func (g *Gate) set(next Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.status
	if prev == next {
		return
	}
	g.status = next
	if g.logger != nil {
		g.logger.Debug("permission status", "from", prev.String(), "to", next.String())
	}
	for _, l := range g.listeners {
		l(prev, next)
	}
}
