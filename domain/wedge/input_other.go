//go:build !windows

package wedge

import "errors"

func sendInput([]keyEvent) error { return errors.ErrUnsupported }

// ForegroundWindowTitle is only available on Windows.
func ForegroundWindowTitle() (string, error) { return "", errors.ErrUnsupported }
