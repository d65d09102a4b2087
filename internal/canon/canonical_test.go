package canon

import (
	"strings"
	"testing"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"zeta":  1,
		"alpha": "x",
		"mid":   true,
	})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"alpha":"x","mid":true,"zeta":1}`
	if string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCanonicalizeDeterministicFloats(t *testing.T) {
	a, err := Canonicalize(map[string]any{"confidence": 0.8})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	b, err := Canonicalize(map[string]any{"confidence": 0.8})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected identical bytes, got %s vs %s", a, b)
	}
	if string(a) != `{"confidence":0.8}` {
		t.Fatalf("unexpected encoding: %s", a)
	}
}

func TestCanonicalizeWholeFloatsAsIntegers(t *testing.T) {
	got, err := Canonicalize(map[string]any{"count": float64(3)})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(got) != `{"count":3}` {
		t.Fatalf("unexpected encoding: %s", got)
	}
}

func TestCanonicalizeNormalizesStrings(t *testing.T) {
	// e + combining acute normalizes to the precomposed form.
	composed, err := Canonicalize("\u00e9")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	precomposed, err := Canonicalize("e\u0301")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(composed) != string(precomposed) {
		t.Fatalf("expected NFC-equal strings, got %s vs %s", composed, precomposed)
	}
}

func TestCanonicalizeRejectsUnsupported(t *testing.T) {
	if _, err := Canonicalize(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestDigestWithPrefix(t *testing.T) {
	digest := DigestWithPrefix([]byte("payload"))
	if !strings.HasPrefix(digest, "sha256:") {
		t.Fatalf("expected sha256 prefix, got %s", digest)
	}
	if len(digest) != len("sha256:")+64 {
		t.Fatalf("unexpected digest length: %d", len(digest))
	}
}
