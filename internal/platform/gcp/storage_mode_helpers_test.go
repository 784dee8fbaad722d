package gcp

import "testing"

func TestObjectStorageModeHelpers(t *testing.T) {
	for _, mode := range []ObjectStorageMode{ObjectStorageModeGCS, ObjectStorageModeGCSEmulator, ObjectStorageModeMemory} {
		if !IsSupportedObjectStorageMode(mode) {
			t.Fatalf("%q should be supported", mode)
		}
	}
	if IsSupportedObjectStorageMode(ObjectStorageMode("s3")) {
		t.Fatalf("s3 should not be supported")
	}
	if IsEmulatorObjectStorageMode(ObjectStorageModeMemory) {
		t.Fatalf("memory should not be emulator mode")
	}
	if !IsEmulatorObjectStorageMode(ObjectStorageModeGCSEmulator) {
		t.Fatalf("gcs_emulator should be emulator mode")
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"case-1/contract.PDF":  "application/pdf",
		"case-1/notes.txt":     "text/plain; charset=utf-8",
		"case-1/scan.tiff":     "image/tiff",
		"doc-1/versions/abc":   "",
		"case-1/data.json?x=1": "application/json",
		"case-1/page.html":     "text/html; charset=utf-8",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
