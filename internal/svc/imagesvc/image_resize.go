package imagesvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/filevault/internal/domain"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

//nolint:gochecknoglobals
var interpolMap = map[string]draw.Interpolator{
	"nearestneighbor": draw.NearestNeighbor,
	"catmullrom":      draw.CatmullRom,
	"bilinear":        draw.BiLinear,
	"approxbilinear":  draw.ApproxBiLinear,
}

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return interpol, nil
}

// checkImageSize reads the dimensions declared in the image header without
// decoding the pixels and rejects images larger than maxPixels.
func checkImageSize(data []byte, mimeType string, maxPixels int64) (image.Config, error) {
	decodeConfig, err := getConfigDecoderByType(mimeType)
	if err != nil {
		return image.Config{}, err
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: read header: %w", domain.ErrImageTypeMismatch, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, fmt.Errorf("%w: empty image %dx%d", domain.ErrImageTypeMismatch, cfg.Width, cfg.Height)
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return image.Config{}, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	return cfg, nil
}

// resizeImage scales an encoded image to width, keeping the aspect ratio, and
// encodes the result in the same format. Neither the source nor the result
// may exceed maxPixels.
func resizeImage(data []byte, mimeType string, width int, maxPixels int64, interpol draw.Interpolator) ([]byte, error) {
	src, err := checkImageSize(data, mimeType, maxPixels)
	if err != nil {
		return nil, err
	}

	height := max(1, int64(src.Height)*int64(width)/int64(src.Width))
	if int64(width)*height > maxPixels {
		return nil, fmt.Errorf("%w: resized image %dx%d exceeds %d pixels",
			domain.ErrInvalidInput, width, height, maxPixels)
	}

	original, err := decodeImage(bytes.NewReader(data), mimeType)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := original.Bounds()
	if bounds.Dx() != src.Width || bounds.Dy() != src.Height {
		return nil, fmt.Errorf("decode image: bounds %v do not match header %dx%d", bounds, src.Width, src.Height)
	}

	bitmap := image.NewRGBA(image.Rect(0, 0, width, int(height)))

	interpol.Scale(bitmap, bitmap.Bounds(), original, bounds, draw.Src, nil)

	resized, err := encodeImage(bitmap, mimeType)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return resized, nil
}

func decodeImage(reader io.Reader, mimeType string) (image.Image, error) {
	decoder, err := getDecoderByType(mimeType)
	if err != nil {
		return nil, err
	}

	//nolint:wrapcheck
	return decoder(reader)
}

func encodeImage(bitmap image.Image, mimeType string) ([]byte, error) {
	encoder, err := getEncoderByType(mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := encoder(&buf, bitmap); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return buf.Bytes(), nil
}
