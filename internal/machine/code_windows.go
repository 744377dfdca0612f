//go:build windows

package machine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/windows/registry"
)

func platformID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, "cmd.exe", "/C", "wmic", "csproduct", "get", "uuid").Output()
	if err == nil {
		if id, ok := parseWMICUUID(string(out)); ok {
			return id, nil
		}
	}

	return machineGUID()
}

// parseWMICUUID reads the value line under the "UUID" header.
func parseWMICUUID(raw string) (string, bool) {
	for _, line := range strings.Split(raw, "\n") {
		v := strings.TrimSpace(line)
		if v == "" || strings.EqualFold(v, "UUID") {
			continue
		}
		return v, true
	}
	return "", false
}

func machineGUID() (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return "", fmt.Errorf("%w: open registry key: %v", ErrUnavailable, err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue("MachineGuid")
	if err != nil {
		return "", fmt.Errorf("%w: read MachineGuid: %v", ErrUnavailable, err)
	}
	if v = strings.TrimSpace(v); v == "" {
		return "", fmt.Errorf("%w: empty MachineGuid", ErrUnavailable)
	}
	return v, nil
}
