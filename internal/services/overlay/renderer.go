package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"vision-annotator-go/internal/models"
)

var labelTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Renderer draws detections onto frames. It holds only drawing parameters,
// never per-frame state, so rendering the same inputs twice produces
// identical output.
type Renderer struct {
	boxThickness int
	fontScale    float64
	font         gocv.HersheyFont
}

// NewRenderer creates a renderer with the default drawing style.
func NewRenderer() *Renderer {
	return &Renderer{
		boxThickness: 2,
		fontScale:    0.5,
		font:         gocv.FontHersheySimplex,
	}
}

// Render draws the detection boxes and labels onto a copy of the frame and
// returns the annotated BGR bytes. Surface dimensions come from the frame on
// every call, so resizes between cycles are honored immediately.
func (r *Renderer) Render(frame *models.Frame, detections []models.Detection) ([]byte, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame data length %d does not match %dx%d BGR24", len(frame.Data), frame.Width, frame.Height)
	}

	// NewMatFromBytes copies, so the source frame stays untouched.
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("creating draw surface: %w", err)
	}
	defer mat.Close()

	width, height := mat.Cols(), mat.Rows()
	for _, det := range detections {
		rect := Denormalize(det.BBox, width, height)
		boxColor := ColorForClass(det.Class)

		gocv.Rectangle(&mat, rect, boxColor, r.boxThickness)
		r.drawLabel(&mat, rect, det, boxColor)
	}

	return mat.ToBytes(), nil
}

// drawLabel paints an opaque background sized to the measured text, then the
// caption itself, above the box (or inside it at the top edge).
func (r *Renderer) drawLabel(mat *gocv.Mat, rect image.Rectangle, det models.Detection, boxColor color.RGBA) {
	label := Label(det.Class, det.Confidence)
	size := gocv.GetTextSize(label, r.font, r.fontScale, r.boxThickness)

	top := rect.Min.Y - size.Y - 5
	if top < 0 {
		top = rect.Min.Y
	}
	background := image.Rect(rect.Min.X, top, rect.Min.X+size.X, top+size.Y+5)
	gocv.Rectangle(mat, background, boxColor, -1)

	origin := image.Pt(rect.Min.X, top+size.Y)
	gocv.PutText(mat, label, origin, r.font, r.fontScale, labelTextColor, r.boxThickness)
}
