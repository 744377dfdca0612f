//go:build !darwin && !linux && !windows

package machine

import (
	"context"
	"fmt"
	"runtime"
)

func platformID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: unsupported OS %s", ErrUnavailable, runtime.GOOS)
}
