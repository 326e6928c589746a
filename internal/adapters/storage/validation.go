package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the MIME types accepted for call recordings.
var AllowedContentTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp3":  true,
	"audio/wav":  true,
	"video/mp4":  true,
}

// NormalizeContentType lowercases contentType and strips parameters like charset.
func NormalizeContentType(contentType string) string {
	normalized := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(normalized))
}

// ValidateContentType checks contentType against AllowedContentTypes.
func ValidateContentType(contentType string) error {
	if !AllowedContentTypes[NormalizeContentType(contentType)] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks 0 < sizeBytes <= maxBytes.
func ValidateFileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxBytes)
	}
	return nil
}

// ExtensionForContentType returns the file extension used when storing contentType.
func ExtensionForContentType(contentType string) string {
	switch NormalizeContentType(contentType) {
	case "audio/wav":
		return ".wav"
	case "video/mp4":
		return ".mp4"
	default:
		return ".mp3"
	}
}
