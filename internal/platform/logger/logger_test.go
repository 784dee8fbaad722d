package logger

import "testing"

func TestSanitizeKVsRedactsSecretsAndDocumentText(t *testing.T) {
	redactOnce.Do(func() {})
	redactionEnabled = true
	hashSalt = ""

	out := sanitizeKVs([]interface{}{
		"authorization", "Bearer abc",
		"document_text", "The Supplier accepts liability without limitation.",
		"document_id", "doc-1",
		"case_id", "case-42",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("authorization: want=%q got=%v", "[REDACTED]", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("document_text: want=%q got=%v", "[REDACTED]", out[3])
	}
	if out[5] != "doc-1" {
		t.Fatalf("document_id: want=%q got=%v", "doc-1", out[5])
	}
	hashed, _ := out[7].(string)
	if len(hashed) != len("hash:")+12 || hashed[:5] != "hash:" {
		t.Fatalf("case_id: want hashed value got=%q", hashed)
	}
}

func TestSanitizeKVsOddLengthKeepsTrailingKey(t *testing.T) {
	redactOnce.Do(func() {})
	redactionEnabled = true

	out := sanitizeKVs([]interface{}{"storage_key", "a/b.txt", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("trailing: got=%v", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("ignored", "k", "v")
	l.With("component", "test").Warn("ignored")
	l.Sync()
}
