//go:build linux

package machine

import (
	"context"
	"fmt"
	"os"
	"strings"
)

var linuxIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
	"/sys/devices/virtual/dmi/id/product_uuid",
}

func platformID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return readFirst(linuxIDPaths)
}

func readFirst(paths []string) (string, error) {
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		v := strings.TrimSpace(string(raw))
		if v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unable to read linux machine id", ErrUnavailable)
}
