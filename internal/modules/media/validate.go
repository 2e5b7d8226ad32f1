package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// imageInfo is what the upload validator learns about a payload.
type imageInfo struct {
	ContentType string
	Width       int
	Height      int
}

// validateFile checks extension and size against the configured limits.
func validateFile(fileName string, size int64, allowed []string, maxBytes int64) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))), ".")
	if ext == "" {
		return fmt.Errorf("%w: image format is required", ErrInvalidUpload)
	}
	if size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrUploadTooLarge, size, maxBytes)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, item := range allowed {
		if item == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: image format .%s is not allowed", ErrInvalidUpload, ext)
}

// inspectImage verifies the payload really is an image and reads its size.
// WebP is not decodable here, so it is accepted on its RIFF/WEBP signature.
func inspectImage(fileName string, payload []byte) (imageInfo, error) {
	info := imageInfo{ContentType: detectContentType(fileName, payload)}

	if isWebP(payload) {
		info.ContentType = "image/webp"
		return info, nil
	}

	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return info, fmt.Errorf("%w: payload is not a supported image", ErrInvalidUpload)
		}
		return info, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	bounds := img.Bounds()
	info.Width, info.Height = bounds.Dx(), bounds.Dy()
	return info, nil
}

// detectContentType sniffs the payload first and falls back to the extension.
func detectContentType(fileName string, payload []byte) string {
	if len(payload) > 0 {
		if sniffed := http.DetectContentType(payload); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))); ext != "" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			return guessed
		}
	}
	return "application/octet-stream"
}

func isWebP(payload []byte) bool {
	return len(payload) >= 12 &&
		bytes.Equal(payload[0:4], []byte("RIFF")) &&
		bytes.Equal(payload[8:12], []byte("WEBP"))
}
