package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	jpegQuality = 85

	// regionPadding expands a detected face box symmetrically before
	// cropping so the model sees some context around the face.
	regionPadding = 0.2
)

// Decode decodes image bytes using the registered formats (JPEG, PNG, GIF, BMP).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Prepare applies the deterministic preprocessing pipeline: luminance
// histogram equalization, a light 3x3 blur, and a resize to size x size.
// Returns JPEG-encoded bytes ready for upload.
func Prepare(data []byte, size int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	rgba := toRGBA(img)
	equalizeLuminance(rgba)
	rgba = boxBlur(rgba)

	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(resized, resized.Bounds(), rgba, rgba.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// CropRegion cuts out a padded face region from the image. The bbox is
// [x1, y1, x2, y2] in pixels; the padding fraction of the box edge is added
// on each side and clamped to the image bounds.
func CropRegion(data []byte, bbox []float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("invalid bounding box: need 4 coordinates, got %d", len(bbox))
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid bounding box: %v", bbox)
	}

	x1 := clampInt(int(bbox[0]-w*regionPadding), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(bbox[1]-h*regionPadding), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(bbox[2]+w*regionPadding), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(bbox[3]+h*regionPadding), bounds.Min.Y, bounds.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("bounding box %v outside image bounds %v", bbox, bounds)
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Copy(crop, image.Point{}, img, image.Rect(x1, y1, x2, y2), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGBA converts any image to RGBA for in-place pixel work.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Copy(rgba, bounds.Min, img, bounds, draw.Over, nil)
	return rgba
}

// equalizeLuminance spreads the luminance histogram across the full range,
// scaling each pixel's channels by the equalized/original luma ratio. This
// normalizes illumination without shifting hue.
func equalizeLuminance(img *image.RGBA) {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[lumaAt(img, x, y)]++
		}
	}

	// Cumulative distribution mapped back to [0, 255].
	var lut [256]uint8
	cum := 0
	for i := range 256 {
		cum += hist[i]
		lut[i] = uint8(cum * 255 / total)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := lumaAt(img, x, y)
			if l == 0 {
				continue
			}
			ratio := float64(lut[l]) / float64(l)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = scaleChannel(img.Pix[i+0], ratio)
			img.Pix[i+1] = scaleChannel(img.Pix[i+1], ratio)
			img.Pix[i+2] = scaleChannel(img.Pix[i+2], ratio)
		}
	}
}

// boxBlur applies a single 3x3 mean filter pass as a light denoise.
func boxBlur(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var r, g, b, a, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					i := img.PixOffset(nx, ny)
					r += int(img.Pix[i+0])
					g += int(img.Pix[i+1])
					b += int(img.Pix[i+2])
					a += int(img.Pix[i+3])
					n++
				}
			}
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(r / n)
			out.Pix[i+1] = uint8(g / n)
			out.Pix[i+2] = uint8(b / n)
			out.Pix[i+3] = uint8(a / n)
		}
	}
	return out
}

// lumaAt returns the ITU-R BT.601 luma of a pixel as 0-255.
func lumaAt(img *image.RGBA, x, y int) int {
	i := img.PixOffset(x, y)
	l := 0.299*float64(img.Pix[i+0]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
	return clampInt(int(l), 0, 255)
}

func scaleChannel(c uint8, ratio float64) uint8 {
	return uint8(clampInt(int(float64(c)*ratio), 0, 255))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
