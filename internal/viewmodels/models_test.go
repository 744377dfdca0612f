package viewmodels_test

import (
	"testing"
	"time"

	"winsbygroup.com/keyverify/internal/store"
	"winsbygroup.com/keyverify/internal/viewmodels"
)

func TestFromRecords(t *testing.T) {
	recs := []store.Record{
		{ProductID: 3349, LicenseKey: "ICVLD-VVSZR-ZTICT-YKGXL", SignMethod: 1, ExpiresAt: "2100-01-01T00:00:00Z"},
		{ProductID: 7, LicenseKey: "SHORT", SignMethod: 0, ExpiresAt: "2000-01-01T00:00:00Z"},
	}

	got := viewmodels.FromRecords(recs)
	if len(got) != 2 {
		t.Fatalf("expected 2 view models, got %d", len(got))
	}
	if got[0].MaskedKey != "ICVLD-VV..." {
		t.Errorf("expected masked key, got %q", got[0].MaskedKey)
	}
	if got[1].MaskedKey != "***" {
		t.Errorf("expected short key fully masked, got %q", got[1].MaskedKey)
	}
	if got[0].SignMethod != "blob" || got[1].SignMethod != "fields" {
		t.Errorf("unexpected sign methods %q, %q", got[0].SignMethod, got[1].SignMethod)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got[0].IsExpired(now) {
		t.Error("expected first license to be current")
	}
	if !got[1].IsExpired(now) {
		t.Error("expected second license to be expired")
	}
	if (viewmodels.StoredLicense{}).IsExpired(now) {
		t.Error("expected no expiry to mean not expired")
	}
}
