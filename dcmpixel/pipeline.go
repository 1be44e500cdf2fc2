package dcmpixel

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/pkg/errors"

	"github.com/rsnactp/dcm"
	"github.com/rsnactp/dcm/dcmlog"
)

// ImageReadError reports that the FrameDecoder collaborator could not
// produce a raster. Per spec.md §7 it is logged and the caller gets back an
// absent image (nil JPEG bytes alongside this error) rather
// than the pipeline panicking or retrying.
type ImageReadError struct {
	Path       string
	FrameIndex int
	Cause      error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("dcmpixel: failed to decode frame %d of %q: %v", e.FrameIndex, e.Path, e.Cause)
}

func (e *ImageReadError) Unwrap() error { return e.Cause }

// RenderOptions parameterizes RenderFrame. Width/Height of 0 means "use the
// decoded frame's native size" (no rescale). Quality follows JPEGEncoder's
// convention: [0,100], or -1 for the encoder's default.
type RenderOptions struct {
	FrameIndex    int
	Width, Height int
	Quality       int
}

// RenderFrame runs the full window/level pipeline described in spec.md
// §4.6: decode the requested frame, synthesize a grayscale LUT from the
// object's WindowCenter/WindowWidth (converted to stored-pixel units via
// RescaleSlope/RescaleIntercept), rescale to the requested output size, and
// encode the painted result as a JPEG.
//
// scaler and encoder may be nil, in which case NearestScaler and
// StdlibJPEGEncoder are used; decoder must not be nil, since this package
// never decodes a transfer syntax itself.
func RenderFrame(fo *dcm.FileObject, decoder FrameDecoder, scaler ImageScaler, encoder JPEGEncoder, opts RenderOptions) ([]byte, error) {
	if scaler == nil {
		scaler = NearestScaler{}
	}
	if encoder == nil {
		encoder = StdlibJPEGEncoder{}
	}

	raster, err := decoder.Decode(fo.Path, opts.FrameIndex)
	if err != nil {
		readErr := &ImageReadError{Path: fo.Path, FrameIndex: opts.FrameIndex, Cause: err}
		dcmlog.Warnf("%v", readErr)
		return nil, readErr
	}

	lutSize := 1 << uint(raster.Model.BitsStored)
	if lutSize <= 0 || lutSize > 1<<20 {
		lutSize = 256
	}

	slope := fo.GetFloat("RescaleSlope", 1)
	intercept := fo.GetFloat("RescaleIntercept", 0)
	displayCenter := fo.GetFloat("WindowCenter", float64(lutSize/2))
	displayWidth := fo.GetFloat("WindowWidth", float64(lutSize))
	pixelCenter, pixelWidth := levelToPixelUnits(displayCenter, displayWidth, slope, intercept)

	lut := BuildLUT(lutSize, WindowLevel{
		Center:   pixelCenter,
		Width:    pixelWidth,
		Inverted: strings.EqualFold(fo.GetString("PresentationLUTShape", ""), "INVERSE"),
	})
	if raster.Model.Signed {
		zeroSignedUpperHalf(lut)
	}

	scaleX, scaleY := 1.0, 1.0
	if opts.Width > 0 {
		scaleX = float64(opts.Width) / float64(raster.Width)
	}
	if opts.Height > 0 {
		scaleY = float64(opts.Height) / float64(raster.Height)
	}
	if scaleX != 1 || scaleY != 1 {
		mode := ChooseScaleMode(raster)
		raster, err = scaler.Scale(raster, scaleX, scaleY, mode)
		if err != nil {
			return nil, errors.Wrap(err, "dcmpixel: scale")
		}
	}

	clipBitsStored(raster)

	img := paint(raster, lut)

	data, err := encoder.Encode(img, opts.Quality)
	if err != nil {
		return nil, errors.Wrap(err, "dcmpixel: encode")
	}
	return data, nil
}

// paint applies lut and produces an RGB 8-bit raster per spec.md §4.6 step
// 4: a single grayscale channel is replicated across R/G/B, a three-sample
// raster is painted per-channel.
func paint(r *Raster, lut []uint8) image.Image {
	lutMax := int32(len(lut) - 1)
	clampIdx := func(v int32) int32 {
		if v < 0 {
			return 0
		}
		if v > lutMax {
			return lutMax
		}
		return v
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	if r.Model.SamplesPerPixel <= 1 {
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				v := lut[clampIdx(r.at(x, y, 0))]
				img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
		return img
	}

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			red := lut[clampIdx(r.at(x, y, 0))]
			green := lut[clampIdx(r.at(x, y, 1))]
			blue := lut[clampIdx(r.at(x, y, 2))]
			img.SetRGBA(x, y, color.RGBA{R: red, G: green, B: blue, A: 255})
		}
	}
	return img
}
