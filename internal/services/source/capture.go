package source

import (
	"fmt"
	"image"
	"os"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
)

// gocvReader reads frames from an OpenCV VideoCapture and normalizes them to
// the configured output resolution as BGR24 bytes.
type gocvReader struct {
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	width  int
	height int
}

// openCapture opens a webcam or file-backed capture. Webcam activation
// checks the device node first so a refused device maps to
// ErrPermissionDenied instead of a generic open failure.
func openCapture(cfg *config.Config, spec models.SourceSpec) (frameReader, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)

	switch spec.Kind {
	case models.SourceWebcam:
		device := spec.Device
		if device == 0 {
			device = cfg.DefaultDevice
		}
		if err := checkDeviceAccess(device); err != nil {
			return nil, err
		}
		cap, err = gocv.OpenVideoCapture(device)
		if err != nil {
			return nil, fmt.Errorf("%w: opening device %d: %v", ErrDeviceUnavailable, device, err)
		}
	case models.SourceFile:
		if spec.URL == "" {
			return nil, fmt.Errorf("%w: file source requires a url", ErrDeviceUnavailable)
		}
		cap, err = gocv.OpenVideoCaptureWithAPI(spec.URL, gocv.VideoCaptureFFmpeg)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrDeviceUnavailable, spec.URL, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported source %q", ErrDeviceUnavailable, spec.Kind)
	}

	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: capture did not open", ErrDeviceUnavailable)
	}

	log.Info().
		Float64("fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("VideoCapture opened")

	return &gocvReader{
		cap:    cap,
		mat:    gocv.NewMat(),
		width:  cfg.OutputWidth,
		height: cfg.OutputHeight,
	}, nil
}

// checkDeviceAccess maps an EACCES on the V4L device node to the
// user-visible permission error.
func checkDeviceAccess(device int) error {
	path := fmt.Sprintf("/dev/video%d", device)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s does not exist", ErrDeviceUnavailable, path)
		}
		// Other failures are left to OpenCV, which may still open the device
		// through a different backend.
		return nil
	}
	f.Close()
	return nil
}

func (r *gocvReader) Read() (*models.Frame, error) {
	if !r.cap.Read(&r.mat) {
		return nil, fmt.Errorf("capture read failed")
	}
	if r.mat.Empty() {
		return nil, fmt.Errorf("capture returned empty frame")
	}

	var data []byte
	if r.mat.Cols() != r.width || r.mat.Rows() != r.height {
		resized := gocv.NewMat()
		gocv.Resize(r.mat, &resized, image.Pt(r.width, r.height), 0, 0, gocv.InterpolationLinear)
		data = resized.ToBytes()
		resized.Close()
	} else {
		data = r.mat.ToBytes()
	}

	return &models.Frame{
		Data:   data,
		Width:  r.width,
		Height: r.height,
	}, nil
}

func (r *gocvReader) Close() error {
	r.mat.Close()
	return r.cap.Close()
}
