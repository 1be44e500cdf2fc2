// Package dcmpixel implements the window/level rendering pipeline: decode a
// frame via a caller-supplied collaborator, build and apply a grayscale LUT
// from window center/width, rescale to the requested output size, and emit
// an 8-bit JPEG. Grounded on the external-collaborator adapter boundary
// `fomoroller-dicom-anonymizer`'s `internal/dicom` package draws around
// `suyashkumar/dicom` + `pkg/frame`: this package never decodes a transfer
// syntax itself, it only consumes whatever raster a FrameDecoder hands back.
package dcmpixel

// ColorModel describes a decoded raster's sample layout, the information
// spec.md §4.6 requires the frame decoder collaborator to report alongside
// the pixels themselves.
type ColorModel struct {
	// BitsStored is the number of meaningful bits per sample.
	BitsStored int
	// Signed is true when PixelRepresentation == 1 (two's complement).
	Signed bool
	// SamplesPerPixel is 1 for grayscale, 3 for RGB.
	SamplesPerPixel int
	// PlanarConfiguration is 0 for interleaved samples, 1 for planar.
	PlanarConfiguration int
}

// Raster is a decoded (but not yet rendered) frame: raw integer sample
// values in row-major order, one entry per sample per pixel, laid out per
// Model.PlanarConfiguration.
type Raster struct {
	Width  int
	Height int
	Model  ColorModel
	// Samples holds Width*Height*Model.SamplesPerPixel values. For
	// SamplesPerPixel == 1 this is simply one value per pixel; for
	// SamplesPerPixel == 3 with PlanarConfiguration == 0, samples for a
	// pixel are adjacent (R,G,B,R,G,B,...); with PlanarConfiguration == 1,
	// each channel is stored as a contiguous plane.
	Samples []int32
}

// at returns the raw sample at (x, y, channel), honoring PlanarConfiguration.
func (r *Raster) at(x, y, channel int) int32 {
	spp := r.Model.SamplesPerPixel
	if spp <= 0 {
		spp = 1
	}
	if r.Model.PlanarConfiguration == 1 && spp > 1 {
		planeSize := r.Width * r.Height
		return r.Samples[channel*planeSize+y*r.Width+x]
	}
	return r.Samples[(y*r.Width+x)*spp+channel]
}

// FrameDecoder is the external collaborator that turns a stored frame into
// a Raster. Decoding actual DICOM transfer syntaxes (JPEG, RLE, native) is
// out of this package's scope — no retrieved example decodes pixel data —
// so callers supply their own per spec.md §1/§6.
type FrameDecoder interface {
	Decode(path string, frameIndex int) (*Raster, error)
}
