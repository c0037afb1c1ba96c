package vision

import (
	"fmt"
	"image"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one face found by the detector, in source image pixels.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
}

const (
	detInputSize     = 640
	anchorsPerCell   = 2
	nmsIoUThreshold  = 0.4
	detInputTensorID = "input.1"
)

// RetinaFace det_10g emits scores then boxes for strides 8, 16 and 32, with
// no batch dimension. Landmark outputs are not requested.
var (
	detStrides = []int{8, 16, 32}
	detOutputs = []tensorSpec{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
	}
)

// Detector runs RetinaFace face detection.
type Detector struct {
	sess      *session
	threshold float32
}

// NewDetector loads the RetinaFace model. opts may be nil for ORT defaults.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	in := tensorSpec{detInputTensorID, ort.NewShape(1, 3, detInputSize, detInputSize)}
	sess, err := newSession(modelPath, in, detOutputs, opts)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	return &Detector{sess: sess, threshold: threshold}, nil
}

// Detect returns the faces in img above the confidence threshold after
// non-maximum suppression, most confident first.
func (d *Detector) Detect(img image.Image) ([]Detection, error) {
	b := img.Bounds()
	input := preprocessForDetection(img, detInputSize, detInputSize)
	if err := d.sess.run(input); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	scaleX := float32(b.Dx()) / detInputSize
	scaleY := float32(b.Dy()) / detInputSize

	var found []Detection
	for i, stride := range detStrides {
		found = append(found, decodeStride(
			d.sess.output(i), d.sess.output(i+len(detStrides)),
			stride, detInputSize/stride, d.threshold,
			scaleX, scaleY, float32(b.Dx()), float32(b.Dy()),
		)...)
	}
	return nms(found, nmsIoUThreshold), nil
}

func (d *Detector) Close() {
	d.sess.destroy()
}

// decodeStride turns one stride's anchor outputs into detections. Box
// outputs are distances from the anchor centre to each edge, in stride units.
func decodeStride(scores, boxes []float32, stride, cells int, threshold, scaleX, scaleY, maxX, maxY float32) []Detection {
	var out []Detection
	st := float32(stride)
	for idx := 0; idx < cells*cells*anchorsPerCell; idx++ {
		if scores[idx] < threshold {
			continue
		}
		cell := idx / anchorsPerCell
		ax := float32(cell%cells) * st
		ay := float32(cell/cells) * st
		box := boxes[idx*4 : idx*4+4]

		out = append(out, Detection{
			BBox: [4]float32{
				clamp((ax-box[0]*st)*scaleX, 0, maxX),
				clamp((ay-box[1]*st)*scaleY, 0, maxY),
				clamp((ax+box[2]*st)*scaleX, 0, maxX),
				clamp((ay+box[3]*st)*scaleY, 0, maxY),
			},
			Confidence: scores[idx],
		})
	}
	return out
}

// nms keeps the most confident box of every overlapping group.
func nms(dets []Detection, iouThreshold float32) []Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	var kept []Detection
next:
	for _, d := range dets {
		for _, k := range kept {
			if iou(d.BBox, k.BBox) > iouThreshold {
				continue next
			}
		}
		kept = append(kept, d)
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	w := max(0, min(a[2], b[2])-max(a[0], b[0]))
	h := max(0, min(a[3], b[3])-max(a[1], b[1]))
	inter := w * h
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
