package search

import (
	"errors"
	"fmt"
	"net/http"
)

// MaxImageBytes is the upload ceiling (10 MiB).
const MaxImageBytes = 10 << 20

// Validation failures returned before any background work starts.
var (
	ErrEmptyImage    = errors.New("image payload is empty")
	ErrImageTooLarge = errors.New("image too large, maximum size is 10 MiB")
	ErrBadFormat     = errors.New("invalid image format, only JPEG/PNG accepted")
	ErrUnknownStore  = errors.New("unsupported store")
)

// ValidateImage checks the payload size and sniffs the actual content type.
// The declared type from the upload is ignored; only the bytes decide. It
// returns the detected MIME type on success.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png":
		return contentType, nil
	default:
		return "", ErrBadFormat
	}
}

// ImageExtension maps a validated MIME type to the blob filename extension.
func ImageExtension(contentType string) string {
	if contentType == "image/png" {
		return "png"
	}
	return "jpg"
}

// NormalizeStores validates the requested store names, preserving request
// order and dropping duplicates. An empty request expands to the full
// supported set.
func NormalizeStores(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return SupportedStores(), nil
	}
	supported := make(map[string]bool, len(SupportedStores()))
	for _, s := range SupportedStores() {
		supported[s] = true
	}
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if !supported[s] {
			return nil, fmt.Errorf("%w %q", ErrUnknownStore, s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
