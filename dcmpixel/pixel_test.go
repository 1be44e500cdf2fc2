package dcmpixel_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsnactp/dcm"
	"github.com/rsnactp/dcm/dcmio"
	"github.com/rsnactp/dcm/dcmpixel"
	"github.com/rsnactp/dcm/dcmtag"
)

func buildFixture(t *testing.T, elems []*dcm.Element) []byte {
	t.Helper()
	fileMeta := []*dcm.Element{
		dcm.MustNewElement(dcmtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
		dcm.MustNewElement(dcmtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
		dcm.MustNewElement(dcmtag.TransferSyntaxUID, "1.2.840.10008.1.2.1"),
	}
	e := dcmio.NewBytesEncoder(binary.LittleEndian, dcmio.ExplicitVR)
	dcm.WriteFileHeader(e, fileMeta)
	for _, elem := range elems {
		dcm.WriteElement(e, elem)
	}
	require.NoError(t, e.Error())
	return e.Bytes()
}

type stubDecoder struct {
	raster *dcmpixel.Raster
	err    error
}

func (s stubDecoder) Decode(path string, frameIndex int) (*dcmpixel.Raster, error) {
	return s.raster, s.err
}

func flatRaster(w, h int, bitsStored int, fill func(x, y int) int32) *dcmpixel.Raster {
	r := &dcmpixel.Raster{
		Width:  w,
		Height: h,
		Model:  dcmpixel.ColorModel{BitsStored: bitsStored, SamplesPerPixel: 1, PlanarConfiguration: 0},
	}
	r.Samples = make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Samples[y*w+x] = fill(x, y)
		}
	}
	return r
}

func TestBuildLUTLinearRamp(t *testing.T) {
	lut := dcmpixel.BuildLUT(256, dcmpixel.WindowLevel{Center: 128, Width: 256})
	require.Equal(t, uint8(0), lut[0])
	// top is 0+256, so index 255 is still interpolated: 255*255/256 = 254.
	require.Equal(t, uint8(254), lut[255])
	require.InDelta(t, 128, int(lut[128]), 2)
}

func TestBuildLUTInverted(t *testing.T) {
	plain := dcmpixel.BuildLUT(256, dcmpixel.WindowLevel{Center: 128, Width: 256})
	inverted := dcmpixel.BuildLUT(256, dcmpixel.WindowLevel{Center: 128, Width: 256, Inverted: true})
	for i := range plain {
		require.Equal(t, uint8(255)-plain[i], inverted[i])
	}
}

func TestBuildLUTZeroWidthIsHardStep(t *testing.T) {
	lut := dcmpixel.BuildLUT(16, dcmpixel.WindowLevel{Center: 8, Width: 0})
	require.Equal(t, uint8(0), lut[7])
	require.Equal(t, uint8(255), lut[9])
}

func TestChooseScaleModeRules(t *testing.T) {
	small := flatRaster(64, 64, 8, func(x, y int) int32 { return 0 })
	require.Equal(t, dcmpixel.ScaleNearest, dcmpixel.ChooseScaleMode(small))

	big := flatRaster(2000, 64, 16, func(x, y int) int32 { return 0 })
	require.Equal(t, dcmpixel.ScaleNearest, dcmpixel.ChooseScaleMode(big))

	normal := flatRaster(512, 512, 12, func(x, y int) int32 { return 0 })
	require.Equal(t, dcmpixel.ScaleBicubic, dcmpixel.ChooseScaleMode(normal))
}

func TestNearestScalerDownscales(t *testing.T) {
	src := flatRaster(4, 4, 8, func(x, y int) int32 { return int32(x + y*4) })
	out, err := (dcmpixel.NearestScaler{}).Scale(src, 0.5, 0.5, dcmpixel.ScaleNearest)
	require.NoError(t, err)
	require.Equal(t, 2, out.Width)
	require.Equal(t, 2, out.Height)
}

func TestNearestScalerRejectsBicubic(t *testing.T) {
	src := flatRaster(4, 4, 8, func(x, y int) int32 { return 0 })
	_, err := (dcmpixel.NearestScaler{}).Scale(src, 0.5, 0.5, dcmpixel.ScaleBicubic)
	require.Error(t, err)
}

func TestRenderFrameProducesJPEG(t *testing.T) {
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.WindowCenter, "128"),
		dcm.MustNewElement(dcmtag.WindowWidth, "256"),
		dcm.MustNewElement(dcmtag.RescaleSlope, "1"),
		dcm.MustNewElement(dcmtag.RescaleIntercept, "0"),
	}
	data := buildFixture(t, elems)
	fo, err := dcm.Parse(bytes.NewReader(data), "fixture.dcm")
	require.NoError(t, err)
	defer fo.Close()

	raster := flatRaster(8, 8, 8, func(x, y int) int32 { return int32((x + y) * 16) })
	decoder := stubDecoder{raster: raster}

	out, err := dcmpixel.RenderFrame(fo, decoder, nil, nil, dcmpixel.RenderOptions{Quality: 90})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())
	require.Equal(t, 8, img.Bounds().Dy())
}

func TestRenderFrameDecodeFailureReturnsImageReadError(t *testing.T) {
	data := buildFixture(t, nil)
	fo, err := dcm.Parse(bytes.NewReader(data), "fixture.dcm")
	require.NoError(t, err)
	defer fo.Close()

	decoder := stubDecoder{err: image.ErrFormat}
	_, err = dcmpixel.RenderFrame(fo, decoder, nil, nil, dcmpixel.RenderOptions{})
	require.Error(t, err)
	var readErr *dcmpixel.ImageReadError
	require.ErrorAs(t, err, &readErr)
}

func TestRenderFrameSignedUpperHalfRendersBlack(t *testing.T) {
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.WindowCenter, "2048"),
		dcm.MustNewElement(dcmtag.WindowWidth, "4096"),
	}
	data := buildFixture(t, elems)
	fo, err := dcm.Parse(bytes.NewReader(data), "fixture.dcm")
	require.NoError(t, err)
	defer fo.Close()

	raster := &dcmpixel.Raster{
		Width:  2,
		Height: 1,
		Model:  dcmpixel.ColorModel{BitsStored: 12, SamplesPerPixel: 1, PlanarConfiguration: 0, Signed: true},
		// a value in the upper half of the 12-bit range represents a
		// negative stored value under two's complement.
		Samples: []int32{0xFFF, 0x800},
	}
	decoder := stubDecoder{raster: raster}

	out, err := dcmpixel.RenderFrame(fo, decoder, nil, nil, dcmpixel.RenderOptions{Quality: 100})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	gray := color.GrayModel.Convert(img.At(0, 0)).(color.Gray)
	require.InDelta(t, 0, gray.Y, 6)
	gray = color.GrayModel.Convert(img.At(1, 0)).(color.Gray)
	require.InDelta(t, 0, gray.Y, 6)
}
