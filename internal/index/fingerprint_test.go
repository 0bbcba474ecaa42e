package index

import "testing"

func TestFingerprint(t *testing.T) {
	a1, err := Fingerprint([]byte("contrato de locação"))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	a2, err := Fingerprint([]byte("contrato de locação"))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if a1 != a2 {
		t.Errorf("same content produced different fingerprints: %d vs %d", a1, a2)
	}

	b, err := Fingerprint([]byte("contrato de locação "))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if a1 == b {
		t.Error("different content produced identical fingerprints")
	}
}
