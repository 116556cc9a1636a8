// Package quality scores page images on resolution, sharpness, contrast,
// noise and aspect ratio.
package quality

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Level is the coarse quality bucket derived from the overall score.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelPoor       Level = "poor"
	LevelVeryPoor   Level = "very_poor"
)

// Metric weights in the overall score.
const (
	weightResolution = 0.25
	weightSharpness  = 0.25
	weightContrast   = 0.20
	weightNoise      = 0.20
	weightAspect     = 0.10
)

// Floors under which a metric is reported as an issue.
const (
	floorResolution = 0.6
	floorSharpness  = 0.4
	floorContrast   = 0.3
	floorNoise      = 0.3
	floorAspect     = 0.5
)

// Analysis is the result of scoring one image. Every metric is in [0,1].
type Analysis struct {
	Resolution      float64  `json:"resolution"`
	Sharpness       float64  `json:"sharpness"`
	Contrast        float64  `json:"contrast"`
	Noise           float64  `json:"noise"`
	AspectRatio     float64  `json:"aspect_ratio"`
	Overall         float64  `json:"overall"`
	Level           Level    `json:"level"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Analyzer computes quality analyses. It holds no mutable state and is safe
// for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger.With("system", "quality")}
}

// Analyze scores a decoded image. It never fails.
func (a *Analyzer) Analyze(img image.Image) Analysis {
	b := img.Bounds()

	res := Analysis{
		Resolution:  resolutionScore(b.Dx(), b.Dy()),
		Sharpness:   sharpnessScore(img),
		Contrast:    contrastScore(img),
		Noise:       noiseScore(img),
		AspectRatio: aspectScore(b.Dx(), b.Dy()),
	}

	res.Overall = res.Resolution*weightResolution +
		res.Sharpness*weightSharpness +
		res.Contrast*weightContrast +
		res.Noise*weightNoise +
		res.AspectRatio*weightAspect

	res.Level = levelFor(res.Overall)
	res.Issues, res.Recommendations = findings(res)

	a.logger.Debug("image analyzed",
		"width", b.Dx(),
		"height", b.Dy(),
		"overall", res.Overall,
		"level", res.Level)

	return res
}

// Decode decodes image bytes in any registered format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func levelFor(overall float64) Level {
	switch {
	case overall >= 0.80:
		return LevelExcellent
	case overall >= 0.65:
		return LevelGood
	case overall >= 0.50:
		return LevelAcceptable
	case overall >= 0.35:
		return LevelPoor
	default:
		return LevelVeryPoor
	}
}

func findings(a Analysis) (issues, recs []string) {
	checks := []struct {
		score float64
		floor float64
		issue string
		rec   string
	}{
		{a.Resolution, floorResolution, "low resolution", "upload a higher resolution scan (at least 1200x1800)"},
		{a.Sharpness, floorSharpness, "image is blurry", "rescan with the page flat and in focus"},
		{a.Contrast, floorContrast, "low contrast", "increase scanner contrast or adjust levels"},
		{a.Noise, floorNoise, "high noise", "apply noise reduction or use a cleaner source"},
		{a.AspectRatio, floorAspect, "unusual aspect ratio", "crop the page to its printed edges"},
	}

	for _, c := range checks {
		if c.score < c.floor {
			issues = append(issues, c.issue)
			recs = append(recs, c.rec)
		}
	}

	if a.Level == LevelPoor || a.Level == LevelVeryPoor {
		recs = append(recs, "use a better copy of this page if one is available")
	}

	return issues, recs
}
