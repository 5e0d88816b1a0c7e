package imaging

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvt/imagedit-be/internal/domain"
)

// 1x1 transparent PNG
var pngBytes = mustDecode("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func mustDecode(s string) []byte {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return data
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		wantFormat  string
	}{
		{
			name:        "png with declared content type",
			data:        pngBytes,
			contentType: "image/png",
			wantFormat:  "png",
		},
		{
			name:        "content type with parameter segment",
			data:        pngBytes,
			contentType: "image/jpeg; charset=binary",
			wantFormat:  "jpeg",
		},
		{
			name:        "empty content type falls back to sniffing",
			data:        pngBytes,
			contentType: "",
			wantFormat:  "png",
		},
		{
			name:        "non-image content type falls back to sniffing",
			data:        pngBytes,
			contentType: "application/octet-stream",
			wantFormat:  "png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := EncodeDataURI(tt.data, tt.contentType)

			data, format, err := DecodeDataURI(uri)
			require.NoError(t, err)
			assert.Equal(t, tt.data, data)
			assert.Equal(t, tt.wantFormat, format)
		})
	}
}

func TestDecodeDataURI_Malformed(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{
			name: "not a data uri",
			uri:  "https://example.com/cat.png",
		},
		{
			name: "wrong mime family",
			uri:  "data:text/plain;base64,aGVsbG8=",
		},
		{
			name: "missing payload separator",
			uri:  "data:image/png;base64",
		},
		{
			name: "invalid base64 payload",
			uri:  "data:image/png;base64,!!!not-base64!!!",
		},
		{
			name: "empty format",
			uri:  "data:image/;base64,aGVsbG8=",
		},
		{
			name: "empty string",
			uri:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDataURI(tt.uri)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidDataURI)
		})
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{name: "plain image type", contentType: "image/png", want: "png"},
		{name: "parameter segment stripped", contentType: "image/jpeg; charset=binary", want: "jpeg"},
		{name: "uppercase normalized", contentType: "IMAGE/WEBP", want: "webp"},
		{name: "no slash", contentType: "png", want: ""},
		{name: "empty", contentType: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromContentType(tt.contentType))
		})
	}
}
