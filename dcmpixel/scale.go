package dcmpixel

import "fmt"

// ScaleMode selects the resampling algorithm a Raster is scaled with.
type ScaleMode int

const (
	ScaleNearest ScaleMode = iota
	ScaleBicubic
)

// ChooseScaleMode implements spec.md §4.6's resampling-mode rule: small
// images (pixel size of 8 bits or less) and oversized images (either
// dimension beyond 1100) use nearest-neighbor; everything else uses
// bicubic, trading a slower resample for smoother output on normal-sized
// diagnostic images.
func ChooseScaleMode(r *Raster) ScaleMode {
	if r.Model.BitsStored <= 8 || r.Width > 1100 || r.Height > 1100 {
		return ScaleNearest
	}
	return ScaleBicubic
}

// ImageScaler is the external collaborator that resamples a Raster to a new
// size. Per spec.md §6 its contract is scale(raster, scale_x, scale_y,
// mode) — scale factors rather than absolute target dimensions, matching
// how window/level callers typically express a requested output size.
type ImageScaler interface {
	Scale(r *Raster, scaleX, scaleY float64, mode ScaleMode) (*Raster, error)
}

// NearestScaler is the one non-stub ImageScaler this package ships: a plain
// nearest-neighbor resample. Bicubic resampling needs a convolution kernel
// no retrieved example or pack dependency provides, so ScaleBicubic is left
// to a caller-supplied ImageScaler — see DESIGN.md's Open Question entry.
type NearestScaler struct{}

func (NearestScaler) Scale(r *Raster, scaleX, scaleY float64, mode ScaleMode) (*Raster, error) {
	if mode != ScaleNearest {
		return nil, fmt.Errorf("dcmpixel: NearestScaler does not support mode %d; supply a custom ImageScaler for bicubic", mode)
	}
	if scaleX <= 0 || scaleY <= 0 {
		return nil, fmt.Errorf("dcmpixel: invalid scale factors %.3f/%.3f", scaleX, scaleY)
	}

	dstW := int(float64(r.Width)*scaleX + 0.5)
	dstH := int(float64(r.Height)*scaleY + 0.5)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	spp := r.Model.SamplesPerPixel
	if spp <= 0 {
		spp = 1
	}

	out := &Raster{
		Width:   dstW,
		Height:  dstH,
		Model:   r.Model,
		Samples: make([]int32, dstW*dstH*spp),
	}

	for y := 0; y < dstH; y++ {
		srcY := int(float64(y) / scaleY)
		if srcY >= r.Height {
			srcY = r.Height - 1
		}
		for x := 0; x < dstW; x++ {
			srcX := int(float64(x) / scaleX)
			if srcX >= r.Width {
				srcX = r.Width - 1
			}
			for c := 0; c < spp; c++ {
				v := r.at(srcX, srcY, c)
				if out.Model.PlanarConfiguration == 1 && spp > 1 {
					planeSize := dstW * dstH
					out.Samples[c*planeSize+y*dstW+x] = v
				} else {
					out.Samples[(y*dstW+x)*spp+c] = v
				}
			}
		}
	}
	return out, nil
}
