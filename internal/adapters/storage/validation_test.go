package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	cases := []struct {
		contentType string
		ok          bool
	}{
		{"audio/mpeg", true},
		{"audio/MP3", true},
		{"audio/wav; charset=binary", true},
		{"video/mp4", true},
		{"image/png", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidateContentType(tc.contentType)
		if (err == nil) != tc.ok {
			t.Fatalf("ValidateContentType(%q) err=%v, want ok=%v", tc.contentType, err, tc.ok)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	const max = 100 << 20
	if err := ValidateFileSize(0, max); err == nil {
		t.Fatal("expected error for empty file")
	}
	if err := ValidateFileSize(max, max); err != nil {
		t.Fatalf("expected max size to be accepted: %v", err)
	}
	if err := ValidateFileSize(max+1, max); err == nil {
		t.Fatal("expected error above limit")
	}
}

func TestExtensionForContentType(t *testing.T) {
	if got := ExtensionForContentType("audio/wav"); got != ".wav" {
		t.Fatalf("expected .wav, got %s", got)
	}
	if got := ExtensionForContentType("audio/mpeg"); got != ".mp3" {
		t.Fatalf("expected .mp3, got %s", got)
	}
}
