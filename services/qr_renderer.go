package services

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
)

const (
	DefaultQRSize = 300
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// ClampQRSize bounds a requested edge length. Zero selects the default.
func ClampQRSize(size int) int {
	switch {
	case size == 0:
		return DefaultQRSize
	case size < MinQRSize:
		return MinQRSize
	case size > MaxQRSize:
		return MaxQRSize
	default:
		return size
	}
}

// RenderQR encodes content as a square PNG QR code of the given edge length
func RenderQR(content string, size int) ([]byte, error) {
	size = ClampQRSize(size)

	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ResizePNG rescales a PNG to a square of the given edge length
func ResizePNG(data []byte, size int) ([]byte, error) {
	size = ClampQRSize(size)

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == size && b.Dy() == size {
		return data, nil
	}

	// Nearest neighbour keeps QR modules sharp.
	resized := imaging.Resize(img, size, size, imaging.NearestNeighbor)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
