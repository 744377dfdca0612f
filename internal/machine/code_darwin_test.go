//go:build darwin

package machine

import "testing"

func TestParseIORegPlatformUUID(t *testing.T) {
	raw := `+-o MacBookPro18,3  <class IOPlatformExpertDevice>
    {
      "IOPlatformUUID" = "8C1F2A4E-77B1-5E59-9A53-3C2B1F0E9D11"
    }`

	got, ok := parseIORegPlatformUUID(raw)
	if !ok || got != "8C1F2A4E-77B1-5E59-9A53-3C2B1F0E9D11" {
		t.Errorf("got %q, %v", got, ok)
	}
	if _, ok := parseIORegPlatformUUID("no uuid here"); ok {
		t.Error("expected no match")
	}
}
