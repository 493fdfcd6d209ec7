package helpers

import (
	"fmt"

	"gocv.io/x/gocv"

	"vision-annotator-go/internal/models"
)

// JPEGQuality is the encode quality for frames shipped to the remote
// detection service. Detection accuracy is insensitive above ~90.
const JPEGQuality = 90

// EncodeFrameJPEG converts a raw BGR frame into a JPEG payload.
func EncodeFrameJPEG(frame *models.Frame) ([]byte, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, fmt.Errorf("empty frame data")
	}
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame data length %d does not match %dx%d BGR geometry", len(frame.Data), frame.Width, frame.Height)
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from BGR data: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as JPEG: %w", err)
	}
	defer buf.Close()

	// GetBytes returns a view into the gocv buffer; copy before Close.
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
