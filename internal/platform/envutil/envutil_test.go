package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("OCR_POLL_MAX_ATTEMPTS", "forty")
	if got := Int("OCR_POLL_MAX_ATTEMPTS", 40); got != 40 {
		t.Fatalf("Int: want=40 got=%d", got)
	}
	t.Setenv("OCR_POLL_MAX_ATTEMPTS", " 12 ")
	if got := Int("OCR_POLL_MAX_ATTEMPTS", 40); got != 12 {
		t.Fatalf("Int: want=12 got=%d", got)
	}
}

func TestBoolAndMillis(t *testing.T) {
	t.Setenv("REVIEW_EXTERNAL_ENABLED", "off")
	if Bool("REVIEW_EXTERNAL_ENABLED", true) {
		t.Fatalf("Bool: want=false got=true")
	}
	t.Setenv("REVIEW_EXTERNAL_ENABLED", "maybe")
	if !Bool("REVIEW_EXTERNAL_ENABLED", true) {
		t.Fatalf("Bool: want default true")
	}
	t.Setenv("OCR_POLL_INTERVAL_MS", "250")
	if got := Millis("OCR_POLL_INTERVAL_MS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Millis: want=250ms got=%s", got)
	}
	t.Setenv("OCR_POLL_INTERVAL_MS", "0")
	if got := Millis("OCR_POLL_INTERVAL_MS", time.Second); got != time.Second {
		t.Fatalf("Millis: want=1s got=%s", got)
	}
}
