package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Token is the single ownership slot for a Device. Pass one Token to every
// component that needs the camera; at most one Lease exists at a time.
type Token struct {
	device Device
	logger *slog.Logger
	slot   chan struct{}
	open   atomic.Int32
	leases atomic.Uint64
}

// NewToken wraps device in an ownership token.
func NewToken(device Device, logger *slog.Logger) *Token {
	return &Token{device: device, logger: logger, slot: make(chan struct{}, 1)}
}

// Device returns the wrapped device.
func (t *Token) Device() Device { return t.device }

// OpenStreams reports how many streams are currently open (0 or 1).
func (t *Token) OpenStreams() int { return int(t.open.Load()) }

// Held reports whether a lease is outstanding.
func (t *Token) Held() bool { return len(t.slot) == 1 }

// Acquire blocks until the token is free or ctx is done.
func (t *Token) Acquire(ctx context.Context) (*Lease, error) {
	if t.device == nil {
		return nil, ErrNoDevice
	}
	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	// prefer cancellation over a slot won in the same instant
	if err := ctx.Err(); err != nil {
		<-t.slot
		return nil, err
	}
	id := t.leases.Add(1)
	if t.logger != nil {
		t.logger.Debug("camera lease acquired", "lease", id, "device", t.device.Name())
	}
	return &Lease{token: t, id: id}, nil
}

// Lease is exclusive, temporary ownership of the camera.
type Lease struct {
	token    *Token
	id       uint64
	mu       sync.Mutex
	stream   *leasedStream
	released bool
}

// Open opens the lease's single stream.
func (l *Lease) Open(ctx context.Context, c Constraints) (Stream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil, ErrLeaseReleased
	}
	if l.stream != nil && !l.stream.closed.Load() {
		return nil, ErrStreamOpen
	}
	s, err := l.token.device.Open(ctx, c)
	if err != nil {
		return nil, err
	}
	l.token.open.Add(1)
	l.stream = &leasedStream{Stream: s, token: l.token}
	return l.stream, nil
}

// ID identifies the lease in logs.
func (l *Lease) ID() uint64 { return l.id }

// Release closes any open stream and frees the token. Safe to call repeatedly.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	s := l.stream
	l.stream = nil
	l.mu.Unlock()

	if s != nil {
		if err := s.Close(); err != nil && l.token.logger != nil {
			l.token.logger.Warn("camera stream close", "lease", l.id, "error", err)
		}
	}
	<-l.token.slot
	if l.token.logger != nil {
		l.token.logger.Debug("camera lease released", "lease", l.id)
	}
}

type leasedStream struct {
	Stream
	token  *Token
	closed atomic.Bool
}

func (s *leasedStream) Frame(ctx context.Context) (*image.RGBA, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	return s.Stream.Frame(ctx)
}

func (s *leasedStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.token.open.Add(-1)
	return s.Stream.Close()
}
