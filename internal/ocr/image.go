package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"slices"

	"github.com/h2non/filetype"
	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MinDimension is the side length below which images are upscaled before
// recognition.
const MinDimension = 1000

// maxPixels caps the upscaled canvas so narrow strips cannot explode memory.
const maxPixels = 40_000_000

// SupportedExtensions lists the formats Inspect accepts, as filetype
// extensions.
var SupportedExtensions = []string{"jpg", "png", "gif", "bmp", "tif", "webp"}

// Info describes an encoded image.
type Info struct {
	Extension string `json:"extension"`
	MIME      string `json:"mime"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ByteSize  int    `json:"byte_size"`
}

// Inspect sniffs the magic number and reads the image header.
func Inspect(data []byte) (Info, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return Info{}, ErrUnsupportedImage
	}
	if !slices.Contains(SupportedExtensions, kind.Extension) {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, kind.MIME.Value)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return Info{
		Extension: kind.Extension,
		MIME:      kind.MIME.Value,
		Width:     cfg.Width,
		Height:    cfg.Height,
		ByteSize:  len(data),
	}, nil
}

// upscaleFactor returns how much to enlarge a w×h image so both sides reach
// MinDimension, or 1 when no scaling applies.
func upscaleFactor(w, h int) float64 {
	if w <= 0 || h <= 0 || (w >= MinDimension && h >= MinDimension) {
		return 1
	}
	scale := max(float64(MinDimension)/float64(w), float64(MinDimension)/float64(h))
	if float64(w)*scale*float64(h)*scale > maxPixels {
		return 1
	}
	return scale
}

// Prepare decodes data, upscales small images, and re-encodes as PNG so
// every engine receives one lossless format.
func Prepare(data []byte) ([]byte, Info, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, Info{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if scale := upscaleFactor(info.Width, info.Height); scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, int(float64(info.Width)*scale), int(float64(info.Height)*scale)))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, Info{}, fmt.Errorf("encoding preprocessed image: %w", err)
	}
	return buf.Bytes(), info, nil
}
