package session

import (
	"context"
	"errors"
)

// ErrNoCode is returned by ScanOnce when ctx ends before a code is decoded.
var ErrNoCode = errors.New("no code decoded")

// ScanOnce runs a single session with opts and returns its code. The
// controller is disposed before returning, so the camera is released on
// every path. OnScanComplete and OnError in opts are replaced.
func ScanOnce(ctx context.Context, opts Options) (string, error) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	opts.OnScanComplete = func(code string) { codes <- code }
	opts.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}
	c := NewController(opts)
	defer c.Dispose()

	if err := c.Start(); err != nil {
		return "", err
	}
	select {
	case code := <-codes:
		return code, nil
	case err := <-errs:
		return "", err
	case <-ctx.Done():
		return "", errors.Join(ErrNoCode, ctx.Err())
	}
}
