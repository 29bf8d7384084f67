package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"lsd-worker-go/internal/models"
)

// HTTPClient is the subset of *http.Client used by the remote detector
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteDetector sends the canvas to an external inference service (multipart, field "file")
type RemoteDetector struct {
	url    string
	client HTTPClient
}

type remoteDetection struct {
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
	Confidence float64 `json:"confidence"`
	Name       string  `json:"name"`
}

func NewRemoteDetector(url string, timeout time.Duration) *RemoteDetector {
	return NewRemoteDetectorWithClient(url, &http.Client{Timeout: timeout})
}

func NewRemoteDetectorWithClient(url string, client HTTPClient) *RemoteDetector {
	return &RemoteDetector{url: url, client: client}
}

func (r *RemoteDetector) Name() string { return "remote" }

func (r *RemoteDetector) Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]models.Detection, error) {
	if err := ValidateCanvas(img); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("%w: encode canvas: %v", models.ErrInvalidImage, err)
	}
	defer buf.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("min_confidence", strconv.FormatFloat(minConfidence, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: detector service: %v", models.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: detector service returned status %d", models.ErrModelUnavailable, resp.StatusCode)
	}

	var result struct {
		Detections []remoteDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode detector response: %v", models.ErrModelUnavailable, err)
	}

	dets := make([]models.Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		dets = append(dets, models.Detection{
			Box: models.Box{
				XMin: int(d.XMin),
				YMin: int(d.YMin),
				XMax: int(d.XMax),
				YMax: int(d.YMax),
			},
			Confidence: d.Confidence,
			ClassName:  d.Name,
		})
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	return admit(dets, bounds, minConfidence), nil
}
