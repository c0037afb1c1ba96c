// Package imagecodec turns uploaded image payloads into pixel buffers and back.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is used when re-encoding decoded images.
const DefaultJPEGQuality = 95

var ErrEmpty = errors.New("empty image payload")

// Decode decodes raw image bytes in any registered format
// (jpeg, png, gif, bmp, webp), applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return Decode(data)
}

// DecodeBase64Bytes returns the raw bytes of a base64 payload. A data URI
// prefix ("data:image/jpeg;base64,") and surrounding whitespace are ignored.
func DecodeBase64Bytes(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, ErrEmpty
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	return data, nil
}

// DecodeBase64 decodes a base64 (or data URI) payload into an image.
func DecodeBase64(payload string) (image.Image, error) {
	data, err := DecodeBase64Bytes(payload)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// EncodeJPEG writes img to w as JPEG.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// EncodeJPEGBytes returns img encoded as JPEG.
func EncodeJPEGBytes(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveJPEG encodes img as JPEG at path, replacing any existing file.
func SaveJPEG(path string, img image.Image, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save jpeg %s: %w", path, err)
	}
	return nil
}
