// Package quality scores decoded images for identification suitability.
// All functions are pure: same pixels, same score.
package quality

import (
	"image"
	"math"

	"github.com/facegate/facegate/internal/config"
)

// Reference values used to map raw measures onto [0, 1]. A Laplacian
// variance of 500 on 8-bit luma is comfortably sharp; 64 is a healthy luma
// standard deviation for a well-lit portrait.
const (
	focusRef    = 500.0
	contrastRef = 64.0
)

// Assessment is the result of scoring one image.
type Assessment struct {
	Valid          bool    `json:"valid"`
	Score          float64 `json:"score"` // weighted combination in [0, 1]
	Focus          float64 `json:"focus"`
	Brightness     float64 `json:"brightness"`
	Contrast       float64 `json:"contrast"`
	Reason         string  `json:"reason,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// Gate combines focus, brightness and contrast measures into a single
// quality score and rejects images below the configured floor.
type Gate struct {
	floor   float64
	weights config.Weights
}

func NewGate(cfg config.QualityConfig) *Gate {
	return &Gate{floor: cfg.Floor, weights: cfg.Weights}
}

// Floor returns the configured rejection threshold.
func (g *Gate) Floor() float64 { return g.floor }

// Assess scores the image. A score below the floor marks the assessment
// invalid and fills in an actionable recommendation; it never errors.
func (g *Gate) Assess(img image.Image) Assessment {
	gray := toLuma(img)

	a := Assessment{
		Focus:      focusScore(gray),
		Brightness: brightnessScore(gray),
		Contrast:   contrastScore(gray),
	}
	a.Score = g.weights.Focus*a.Focus + g.weights.Brightness*a.Brightness + g.weights.Contrast*a.Contrast
	a.Valid = a.Score >= g.floor

	if !a.Valid {
		a.Reason = "image quality below threshold"
		a.Recommendation = recommend(a)
	}
	return a
}

// recommend names the weakest component so the caller can tell the user
// what to fix.
func recommend(a Assessment) string {
	switch {
	case a.Focus <= a.Brightness && a.Focus <= a.Contrast:
		return "image is blurry, hold the camera steady and retake"
	case a.Brightness <= a.Contrast:
		return "image is too dark or too bright, adjust the lighting"
	default:
		return "image is too flat, avoid backlighting and haze"
	}
}

// focusScore measures sharpness as the variance of the Laplacian, the
// classic blur detector. Normalized against focusRef and clamped.
func focusScore(gray [][]float64) float64 {
	h := len(gray)
	if h < 3 {
		return 0
	}
	w := len(gray[0])
	if w < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1] - 4*gray[y][x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return clamp01(variance / focusRef)
}

// brightnessScore rewards mean luma close to mid-gray: 1.0 at 127.5,
// falling linearly to 0.0 at pure black or pure white.
func brightnessScore(gray [][]float64) float64 {
	var sum float64
	n := 0
	for _, row := range gray {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return clamp01(1 - math.Abs(mean-127.5)/127.5)
}

// contrastScore measures RMS contrast (luma standard deviation) normalized
// against contrastRef and clamped.
func contrastScore(gray [][]float64) float64 {
	var sum, sumSq float64
	n := 0
	for _, row := range gray {
		for _, v := range row {
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return clamp01(math.Sqrt(variance) / contrastRef)
}

// toLuma converts an image to rows of ITU-R BT.601 luma values (0-255).
func toLuma(img image.Image) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	gray := make([][]float64, h)
	for y := range h {
		gray[y] = make([]float64, w)
		for x := range w {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
