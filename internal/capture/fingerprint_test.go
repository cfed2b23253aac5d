package capture

import (
	"testing"
	"time"
)

func TestFingerprintTruncatesToSeconds(t *testing.T) {
	base := time.Date(2026, 4, 2, 8, 30, 15, 0, time.UTC)
	jittered := base.Add(640 * time.Millisecond)

	if Fingerprint(2048, base) != Fingerprint(2048, jittered) {
		t.Fatal("expected sub-second jitter to produce the same fingerprint")
	}
	if Fingerprint(2048, base) == Fingerprint(2048, base.Add(time.Second)) {
		t.Fatal("expected a different second to produce a different fingerprint")
	}
	if Fingerprint(2048, base) == Fingerprint(2049, base) {
		t.Fatal("expected a different size to produce a different fingerprint")
	}
}

func TestFingerprintNormalizesZone(t *testing.T) {
	instant := time.Date(2026, 4, 2, 8, 30, 15, 0, time.UTC)
	shifted := instant.In(time.FixedZone("CEST", 2*60*60))
	if Fingerprint(1024, instant) != Fingerprint(1024, shifted) {
		t.Fatal("expected fingerprint to be independent of the wall-clock zone")
	}
}
