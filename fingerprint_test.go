package ragserve

import "testing"

func TestFingerprintURL(t *testing.T) {
	req := IngestRequest{URL: "https://example.com/doc.pdf", DocumentType: TypePDF}
	if got := Fingerprint(req); got != "https://example.com/doc.pdf" {
		t.Errorf("Fingerprint() = %q, want the URL itself", got)
	}
}

func TestFingerprintContentDeterministic(t *testing.T) {
	a := Fingerprint(IngestRequest{Content: "Python is dynamically typed.", DocumentType: TypeText})
	b := Fingerprint(IngestRequest{Content: "Python is dynamically typed.", DocumentType: TypeText})
	if a != b {
		t.Errorf("same content produced different fingerprints: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintContentSensitive(t *testing.T) {
	a := Fingerprint(IngestRequest{Content: "Python is dynamically typed.", DocumentType: TypeText})
	b := Fingerprint(IngestRequest{Content: "Python is dynamically typed!", DocumentType: TypeText})
	if a == b {
		t.Error("single-character change did not change fingerprint")
	}
}

func TestFingerprintURLWinsOverContentHash(t *testing.T) {
	// Two different URLs serving identical bytes stay distinct.
	a := Fingerprint(IngestRequest{URL: "https://a.example/doc", DocumentType: TypeText})
	b := Fingerprint(IngestRequest{URL: "https://b.example/doc", DocumentType: TypeText})
	if a == b {
		t.Error("distinct URLs must produce distinct keys")
	}
}
