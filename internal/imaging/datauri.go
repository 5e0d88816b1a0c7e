// Package imaging handles the embedded image payload representation used at
// the service boundary: a data URI combining the declared MIME type with the
// base64-encoded image bytes.
package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/minhvt/imagedit-be/internal/domain"
)

const imageURIPrefix = "data:image/"

// EncodeDataURI wraps raw image bytes into a data URI. When contentType is
// empty or not an image type, the actual bytes are sniffed instead.
func EncodeDataURI(data []byte, contentType string) string {
	contentType = normalizeContentType(contentType)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = mimetype.Detect(data).String()
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", contentType, encoded)
}

// DecodeDataURI extracts the raw image bytes and the declared format from a
// data URI. Malformed input yields an error wrapping domain.ErrInvalidDataURI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, imageURIPrefix) {
		return nil, "", fmt.Errorf("%w: missing %q prefix", domain.ErrInvalidDataURI, imageURIPrefix)
	}

	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, "", fmt.Errorf("%w: missing payload separator", domain.ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidDataURI, err)
	}

	// header is "data:image/png;base64"
	format := strings.TrimPrefix(header, imageURIPrefix)
	if i := strings.IndexByte(format, ';'); i >= 0 {
		format = format[:i]
	}
	if format == "" {
		return nil, "", fmt.Errorf("%w: empty image format", domain.ErrInvalidDataURI)
	}

	return data, format, nil
}

// FormatFromContentType derives the declared image format from a MIME
// content type, e.g. "image/png; charset=binary" -> "png".
func FormatFromContentType(contentType string) string {
	contentType = normalizeContentType(contentType)
	_, format, found := strings.Cut(contentType, "/")
	if !found {
		return ""
	}
	return format
}

func normalizeContentType(contentType string) string {
	// Strip any parameter segment ("; charset=...")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}
