package quality

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	analysisSide = 1000
	noiseSide    = 500
	noiseSigma   = 1.0
)

func resolutionScore(w, h int) float64 {
	area := w * h
	switch {
	case area >= 1200*1800:
		return 1.0
	case area >= 1000*1440:
		return 0.8
	case area >= 800*1200:
		return 0.6
	case area >= 600*800:
		return 0.4
	default:
		return 0.2
	}
}

// aspectScore favours a height/width ratio of 1.5. Inside the ±0.3 band the
// score falls from 1 to 0.7; outside it keeps falling to a floor of 0.3.
func aspectScore(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0.3
	}
	d := math.Abs(float64(h)/float64(w) - 1.5)
	if d <= 0.3 {
		return 1 - d
	}
	return math.Max(0.3, 0.7-(d-0.3))
}

func sharpnessScore(img image.Image) float64 {
	lum := luminance(imaging.Fit(img, analysisSide, analysisSide, imaging.Linear))
	return math.Min(variance(laplacian(lum))/500, 1.0)
}

func contrastScore(img image.Image) float64 {
	lum := luminance(imaging.Fit(img, analysisSide, analysisSide, imaging.Linear))
	return math.Min(math.Sqrt(variance(lum.pix))/64, 1.0)
}

func noiseScore(img image.Image) float64 {
	small := imaging.Grayscale(imaging.Fit(img, noiseSide, noiseSide, imaging.Linear))
	orig := luminance(small)
	blurred := luminance(imaging.Blur(small, noiseSigma))

	if len(orig.pix) == 0 {
		return 1.0
	}

	var sum float64
	for i := range orig.pix {
		sum += math.Abs(orig.pix[i] - blurred.pix[i])
	}
	estimate := sum / float64(len(orig.pix))

	return math.Max(0, 1-estimate/25)
}

type lumaPlane struct {
	w, h int
	pix  []float64
}

func (p lumaPlane) at(x, y int) float64 {
	return p.pix[y*p.w+x]
}

// luminance converts an image to Rec. 601 luma in [0,255].
func luminance(img image.Image) lumaPlane {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	p := lumaPlane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}

	for y := range p.h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range p.w {
			i := x * 4
			r, g, bl := float64(row[i]), float64(row[i+1]), float64(row[i+2])
			p.pix[y*p.w+x] = 0.299*r + 0.587*g + 0.114*bl
		}
	}

	return p
}

// laplacian applies the 3x3 kernel [0 1 0; 1 -4 1; 0 1 0] over the interior
// of the plane.
func laplacian(p lumaPlane) []float64 {
	if p.w < 3 || p.h < 3 {
		return nil
	}

	out := make([]float64, 0, (p.w-2)*(p.h-2))
	for y := 1; y < p.h-1; y++ {
		for x := 1; x < p.w-1; x++ {
			v := p.at(x, y-1) + p.at(x-1, y) + p.at(x+1, y) + p.at(x, y+1) - 4*p.at(x, y)
			out = append(out, v)
		}
	}
	return out
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}

	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}
