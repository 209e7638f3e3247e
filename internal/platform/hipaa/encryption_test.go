package hipaa

import (
	"crypto/rand"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewPHIEncryptor(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		enc, err := NewPHIEncryptor(generateTestKey(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if enc == nil {
			t.Fatal("expected non-nil encryptor")
		}
	})

	t.Run("key too short", func(t *testing.T) {
		if _, err := NewPHIEncryptor(make([]byte, 16)); err == nil {
			t.Fatal("expected error for 16-byte key")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if _, err := NewPHIEncryptor([]byte{}); err == nil {
			t.Fatal("expected error for empty key")
		}
	})
}

func TestParseKey(t *testing.T) {
	key := generateTestKey(t)
	got, err := ParseKey(hex.EncodeToString(key))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, key) {
		t.Error("decoded key differs")
	}
	if _, err := ParseKey("abcd"); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := ParseKey(strings.Repeat("zz", 32)); err == nil {
		t.Error("expected error for non-hex key")
	}
}

func TestSealOpenValue(t *testing.T) {
	enc, err := NewPHIEncryptor(generateTestKey(t))
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	cases := []any{
		"123-45-6789",
		"",
		true,
		float64(42),
		[]any{"diabetes", "asthma"},
		map[string]any{"street": "1 Main", "zip": "62701"},
	}
	for _, v := range cases {
		sealed, err := enc.SealValue(v)
		if err != nil {
			t.Fatalf("seal %v: %v", v, err)
		}
		if !IsSealed(sealed) {
			t.Errorf("sealed value missing prefix: %q", sealed)
		}
		got, err := enc.OpenValue(sealed)
		if err != nil {
			t.Fatalf("open %v: %v", v, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Errorf("round trip: got %#v, want %#v", got, v)
		}
	}
}

func TestSealValue_NonDeterministic(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	a, _ := enc.SealValue("same")
	b, _ := enc.SealValue("same")
	if a == b {
		t.Error("expected distinct ciphertexts for the same plaintext")
	}
}

func TestOpenValue_WrongKey(t *testing.T) {
	enc1, _ := NewPHIEncryptor(generateTestKey(t))
	enc2, _ := NewPHIEncryptor(generateTestKey(t))
	sealed, _ := enc1.SealValue("secret")
	if _, err := enc2.OpenValue(sealed); err == nil {
		t.Fatal("expected error opening with the wrong key")
	}
	if _, err := enc1.OpenValue("plain"); err != ErrNotSealed {
		t.Errorf("expected ErrNotSealed, got %v", err)
	}
}

func TestSealFields(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	answers := map[string]any{"ssn": "123-45-6789", "firstName": "Ada", "empty": nil}

	sealed, err := enc.SealFields(answers, []string{"ssn", "empty", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsSealed(sealed["ssn"]) {
		t.Error("ssn not sealed")
	}
	if sealed["firstName"] != "Ada" || sealed["empty"] != nil {
		t.Errorf("unlisted or nil values changed: %v", sealed)
	}
	if _, ok := sealed["missing"]; ok {
		t.Error("missing field must not be added")
	}
	if answers["ssn"] != "123-45-6789" {
		t.Error("input map modified")
	}

	opened, err := enc.OpenFields(sealed, []string{"ssn", "empty", "missing"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !reflect.DeepEqual(opened, answers) {
		t.Errorf("got %v, want %v", opened, answers)
	}
}

func TestSealFields_PrefixedPlaintextIsSealed(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	answers := map[string]any{"ssn": "enc:v1:hello"}

	sealed, err := enc.SealFields(answers, []string{"ssn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sealed["ssn"] == "enc:v1:hello" {
		t.Fatal("prefixed plaintext was stored as if it were ciphertext")
	}
	opened, err := enc.OpenFields(sealed, []string{"ssn"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened["ssn"] != "enc:v1:hello" {
		t.Errorf("got %v", opened["ssn"])
	}
}

func TestOpenFields_OnlyListedFields(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	ssn, err := enc.SealValue("123-45-6789")
	if err != nil {
		t.Fatal(err)
	}
	answers := map[string]any{"ssn": ssn, "name": "enc:v1:hello"}

	opened, err := enc.OpenFields(answers, []string{"ssn"})
	if err != nil {
		t.Fatalf("unlisted prefixed value must be ignored: %v", err)
	}
	if opened["ssn"] != "123-45-6789" || opened["name"] != "enc:v1:hello" {
		t.Errorf("unexpected answers %v", opened)
	}
	if _, err := enc.OpenFields(answers, []string{"name"}); err == nil {
		t.Error("expected an error opening a malformed sealed value")
	}
}
