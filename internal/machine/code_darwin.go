//go:build darwin

package machine

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var ioRegPlatformUUIDRe = regexp.MustCompile(`"IOPlatformUUID"\s*=\s*"([^"]+)"`)

func platformID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err == nil {
		if id, ok := parseIORegPlatformUUID(string(out)); ok {
			return id, nil
		}
	}

	alt, altErr := exec.CommandContext(ctx, "sysctl", "-n", "kern.uuid").Output()
	if altErr == nil {
		if id := strings.TrimSpace(string(alt)); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: unable to read macOS platform UUID", ErrUnavailable)
}

func parseIORegPlatformUUID(raw string) (string, bool) {
	m := ioRegPlatformUUIDRe.FindStringSubmatch(raw)
	if len(m) != 2 {
		return "", false
	}
	id := strings.TrimSpace(m[1])
	return id, id != ""
}
