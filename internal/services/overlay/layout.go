package overlay

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"

	"vision-annotator-go/internal/models"
)

// Stable colors for the common classes; anything else gets a deterministic
// hash-derived color so the same class always renders the same way.
var classColors = map[string]color.RGBA{
	"person":     {R: 255, G: 0, B: 0, A: 255},
	"car":        {R: 0, G: 0, B: 255, A: 255},
	"truck":      {R: 128, G: 0, B: 255, A: 255},
	"motorcycle": {R: 0, G: 255, B: 0, A: 255},
	"bicycle":    {R: 128, G: 0, B: 128, A: 255},
	"bus":        {R: 255, G: 255, B: 0, A: 255},
}

// ColorForClass returns the stable color for a class name.
func ColorForClass(class string) color.RGBA {
	if c, ok := classColors[class]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(class))
	v := h.Sum32() % 255
	return color.RGBA{
		R: uint8(v * 71 % 255),
		G: uint8(v * 43 % 255),
		B: uint8(v * 17 % 255),
		A: 255,
	}
}

// Denormalize maps a normalized bbox onto a surface of the given pixel
// dimensions, clamped to the surface bounds.
func Denormalize(b models.BBox, width, height int) image.Rectangle {
	x1 := int(float64(b.X) * float64(width))
	y1 := int(float64(b.Y) * float64(height))
	x2 := int(float64(b.X+b.W) * float64(width))
	y2 := int(float64(b.Y+b.H) * float64(height))

	x1 = clamp(x1, 0, width-1)
	y1 = clamp(y1, 0, height-1)
	x2 = clamp(x2, x1+1, width)
	y2 = clamp(y2, y1+1, height)

	return image.Rect(x1, y1, x2, y2)
}

// Label formats the box caption: class name plus rounded-percent confidence.
func Label(class string, confidence float32) string {
	return fmt.Sprintf("%s %d%%", class, int(math.Round(float64(confidence)*100)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
