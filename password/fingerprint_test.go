package password

import "testing"

func TestFingerprintIsStableHex(t *testing.T) {
	a := Fingerprint("token-value")
	b := Fingerprint("token-value")
	if a != b {
		t.Fatal("expected deterministic fingerprint")
	}
	if len(a) != FingerprintLength {
		t.Fatalf("expected %d chars, got %d", FingerprintLength, len(a))
	}
	if Fingerprint("token-value-2") == a {
		t.Fatal("expected distinct tokens to fingerprint differently")
	}
}

func TestVerifyFingerprint(t *testing.T) {
	stored := Fingerprint("refresh-1")
	if !VerifyFingerprint("refresh-1", stored) {
		t.Fatal("expected matching token to verify")
	}
	if VerifyFingerprint("refresh-2", stored) {
		t.Fatal("expected other token to fail")
	}
	if VerifyFingerprint("refresh-1", stored[:10]) {
		t.Fatal("expected truncated fingerprint to fail")
	}
	if VerifyFingerprint("refresh-1", "") {
		t.Fatal("expected empty fingerprint to fail")
	}
}
