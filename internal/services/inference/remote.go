package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/models"
)

// EncodeFunc turns a raw frame into an image payload the detection service
// accepts. Kept injectable so the adapter is testable without OpenCV.
type EncodeFunc func(frame *models.Frame) ([]byte, error)

// RemoteAdapter calls an external detection service over HTTP. The service
// contract: multipart POST /detect with `file`, `confidence` and `model`
// fields, JSON response listing class name, confidence and normalized bbox.
type RemoteAdapter struct {
	baseURL string
	client  *http.Client
	encode  EncodeFunc
}

// remoteResult mirrors one entry of the service response.
type remoteResult struct {
	ClassName  string    `json:"class_name"`
	Confidence float32   `json:"confidence"`
	BBox       []float32 `json:"bbox"`
}

type remoteResponse struct {
	Results []remoteResult `json:"results"`
}

// NewRemoteAdapter creates an adapter for the detection service at baseURL.
func NewRemoteAdapter(baseURL string, timeout time.Duration, encode EncodeFunc) *RemoteAdapter {
	return &RemoteAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		encode:  encode,
	}
}

// Detect submits the frame and maps the response to detections. Results are
// re-filtered against the threshold so a misbehaving service cannot push
// below-threshold detections into the pipeline.
func (a *RemoteAdapter) Detect(ctx context.Context, frame *models.Frame, threshold float32, modelID string) ([]models.Detection, error) {
	payload, err := a.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding frame: %v", ErrInference, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInference, err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInference, err)
	}
	if err := writer.WriteField("confidence", strconv.FormatFloat(float64(threshold), 'f', 2, 32)); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInference, err)
	}
	if err := writer.WriteField("model", modelID); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInference, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInference, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/detect", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: detect returned status %d", ErrInference, resp.StatusCode)
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrInference, err)
	}

	detections := make([]models.Detection, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if len(r.BBox) != 4 {
			log.Warn().Str("class", r.ClassName).Int("bbox_len", len(r.BBox)).Msg("Skipping detection with malformed bbox")
			continue
		}
		detections = append(detections, models.Detection{
			Class:      r.ClassName,
			Confidence: r.Confidence,
			BBox:       models.BBox{X: r.BBox[0], Y: r.BBox[1], W: r.BBox[2], H: r.BBox[3]},
		})
	}

	return models.FilterByThreshold(detections, threshold), nil
}
