package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"lsd-worker-go/internal/models"
)

// yolov5 output rows are [cx, cy, w, h, objectness, class scores...]
const yoloBoxFields = 5

// ONNXDetector runs a YOLOv5 ONNX export through the OpenCV dnn module
type ONNXDetector struct {
	// mu guards net; a gocv.Net is not safe for concurrent forward passes
	mu  sync.Mutex
	net gocv.Net

	classes      []string
	inputSize    int
	nmsThreshold float32
}

// LoadONNX reads the model once. The returned detector owns the network until Close.
func LoadONNX(path string, classes []string, inputSize int, nmsThreshold float64) (*ONNXDetector, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid detector input size %d", models.ErrModelUnavailable, inputSize)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: detector model: %v", models.ErrModelUnavailable, err)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: failed to read ONNX model %s", models.ErrModelUnavailable, path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Info().
		Str("path", path).
		Strs("classes", classes).
		Int("input_size", inputSize).
		Msg("Detector model loaded")

	return &ONNXDetector{
		net:          net,
		classes:      classes,
		inputSize:    inputSize,
		nmsThreshold: float32(nmsThreshold),
	}, nil
}

func (d *ONNXDetector) Name() string { return "onnx" }

func (d *ONNXDetector) Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]models.Detection, error) {
	if err := ValidateCanvas(img); err != nil {
		return nil, err
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	out, err := d.forward(blob)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 || sizes[2] <= yoloBoxFields {
		return nil, fmt.Errorf("%w: unexpected detector output shape %v", models.ErrModelUnavailable, sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: read detector output: %v", models.ErrModelUnavailable, err)
	}

	scaleX := float64(img.Cols()) / float64(d.inputSize)
	scaleY := float64(img.Rows()) / float64(d.inputSize)
	candidates := decodeYOLOv5(data, sizes[1], sizes[2], scaleX, scaleY, minConfidence)
	kept := suppress(candidates, d.nmsThreshold)

	dets := make([]models.Detection, 0, len(kept))
	for _, c := range kept {
		dets = append(dets, models.Detection{
			Box:        models.Box{XMin: c.rect.Min.X, YMin: c.rect.Min.Y, XMax: c.rect.Max.X, YMax: c.rect.Max.Y},
			Confidence: float64(c.score),
			ClassName:  d.className(c.class),
		})
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	return admit(dets, bounds, minConfidence), nil
}

func (d *ONNXDetector) forward(blob gocv.Mat) (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	if out.Empty() {
		out.Close()
		return gocv.Mat{}, fmt.Errorf("%w: detector forward pass returned no output", models.ErrModelUnavailable)
	}
	return out, nil
}

func (d *ONNXDetector) className(idx int) string {
	if idx >= 0 && idx < len(d.classes) {
		return d.classes[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}

// Close releases the network
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

type candidate struct {
	rect  image.Rectangle
	score float32
	class int
}

// decodeYOLOv5 turns raw output rows into scaled candidate boxes. Rows whose confidence
// (objectness × best class score) is below minConfidence are dropped.
func decodeYOLOv5(data []float32, rows, dims int, scaleX, scaleY, minConfidence float64) []candidate {
	if dims <= yoloBoxFields || len(data) < rows*dims {
		return nil
	}

	var out []candidate
	for i := 0; i < rows; i++ {
		row := data[i*dims : (i+1)*dims]
		objectness := row[4]
		if float64(objectness) < minConfidence {
			continue
		}

		best := 0
		for c := 1; c < dims-yoloBoxFields; c++ {
			if row[yoloBoxFields+c] > row[yoloBoxFields+best] {
				best = c
			}
		}
		score := objectness * row[yoloBoxFields+best]
		if float64(score) < minConfidence {
			continue
		}

		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		x1 := int(math.Round((cx - w/2) * scaleX))
		y1 := int(math.Round((cy - h/2) * scaleY))
		x2 := int(math.Round((cx + w/2) * scaleX))
		y2 := int(math.Round((cy + h/2) * scaleY))

		out = append(out, candidate{rect: image.Rect(x1, y1, x2, y2), score: score, class: best})
	}
	return out
}

// suppress runs non-maximum suppression separately for each class, keeping the order in
// which classes first appear.
func suppress(candidates []candidate, nmsThreshold float32) []candidate {
	if len(candidates) == 0 {
		return nil
	}

	var order []int
	groups := make(map[int][]candidate)
	for _, c := range candidates {
		if _, ok := groups[c.class]; !ok {
			order = append(order, c.class)
		}
		groups[c.class] = append(groups[c.class], c)
	}

	var kept []candidate
	for _, class := range order {
		group := groups[class]
		rects := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			rects[i] = c.rect
			scores[i] = c.score
		}
		for _, idx := range gocv.NMSBoxes(rects, scores, 0, nmsThreshold) {
			kept = append(kept, group[idx])
		}
	}
	return kept
}
