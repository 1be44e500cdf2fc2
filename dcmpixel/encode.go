package dcmpixel

import (
	"bytes"
	"image"
	"image/jpeg"
)

// JPEGEncoder is the external collaborator that turns a rendered 8-bit
// image into JPEG bytes. Per spec.md §6, quality is in [0,100], or -1 to
// mean "encoder default".
type JPEGEncoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// StdlibJPEGEncoder backs JPEGEncoder with image/jpeg. No pack dependency
// offers a JPEG encoder beyond the standard library, so this is used
// directly rather than reimplemented — see DESIGN.md's stdlib
// justification for this package.
type StdlibJPEGEncoder struct{}

func (StdlibJPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality < 0 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
