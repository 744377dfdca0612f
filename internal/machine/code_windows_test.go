//go:build windows

package machine

import "testing"

func TestParseWMICUUID(t *testing.T) {
	out := "UUID                                  \r\n4C4C4544-0042-3510-8050-B4C04F4E3732  \r\n\r\n"

	got, ok := parseWMICUUID(out)
	if !ok || got != "4C4C4544-0042-3510-8050-B4C04F4E3732" {
		t.Errorf("got %q, %v", got, ok)
	}
	if _, ok := parseWMICUUID("UUID\r\n\r\n"); ok {
		t.Error("expected no value")
	}
}
