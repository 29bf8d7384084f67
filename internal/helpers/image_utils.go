package helpers

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"

	"lsd-worker-go/internal/models"
)

const (
	// JPEG quality settings
	DefaultQuality = 90
	MinQuality     = 1
	MaxQuality     = 100
)

// isJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func isJPEGData(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	// JPEG magic bytes: FF D8
	return data[0] == 0xFF && data[1] == 0xD8
}

// isPNGData checks for the PNG signature
func isPNGData(data []byte) bool {
	return len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n"
}

// DecodeImage decodes an uploaded image into a 3-channel BGR canvas. The caller owns the Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty upload", models.ErrInvalidImage)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}
	if mat.Empty() || mat.Rows() <= 0 || mat.Cols() <= 0 {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: could not decode %s", models.ErrInvalidImage, describeFormat(data))
	}
	return mat, nil
}

// EncodeJPEG encodes the canvas as JPEG. Out-of-range qualities fall back to DefaultQuality.
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty canvas", models.ErrInvalidImage)
	}
	if quality < MinQuality || quality > MaxQuality {
		quality = DefaultQuality
	}

	jpegBuf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode canvas as JPEG: %w", err)
	}
	defer jpegBuf.Close()

	// GetBytes points into native memory released by Close
	out := make([]byte, jpegBuf.Len())
	copy(out, jpegBuf.GetBytes())
	return out, nil
}

// EncodeJPEGBase64 encodes the canvas as a base64 JPEG string
func EncodeJPEGBase64(mat gocv.Mat, quality int) (string, error) {
	data, err := EncodeJPEG(mat, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func describeFormat(data []byte) string {
	switch {
	case isJPEGData(data):
		return "jpeg data"
	case isPNGData(data):
		return "png data"
	default:
		return fmt.Sprintf("%d bytes of unknown format", len(data))
	}
}
