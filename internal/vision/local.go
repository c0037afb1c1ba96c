package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/magiclogon/faceid/internal/engine"
	"github.com/magiclogon/faceid/internal/imagecodec"
)

// Model file names expected in the models directory.
const (
	DetectorModel = "det_10g.onnx"
	EmbedderModel = "w600k_r50.onnx"
)

// LocalEngine implements engine.Engine in-process with RetinaFace + ArcFace.
// The ONNX sessions reuse fixed input/output tensors, so inference is serialised.
type LocalEngine struct {
	mu        sync.Mutex
	detector  *Detector
	embedder  *Embedder
	threshold float64
}

var _ engine.Engine = (*LocalEngine)(nil)

// NewLocalEngine loads both models from modelsDir. The ONNX runtime
// environment must already be initialised.
func NewLocalEngine(modelsDir string, opts engine.Options) (*LocalEngine, error) {
	detPath := filepath.Join(modelsDir, DetectorModel)
	embPath := filepath.Join(modelsDir, EmbedderModel)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(opts.DetectionThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, nil)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("local face engine ready", "threshold", opts.Threshold)

	return &LocalEngine{
		detector:  det,
		embedder:  emb,
		threshold: opts.Threshold,
	}, nil
}

func (e *LocalEngine) CountFaces(ctx context.Context, imagePath string) (int, error) {
	img, err := imagecodec.DecodeFile(imagePath)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	detections, err := e.detect(img)
	if err != nil {
		return 0, err
	}
	return len(detections), nil
}

func (e *LocalEngine) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	img, err := imagecodec.DecodeFile(imagePath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.embedBest(img)
}

// Compare embeds the most confident face of each image and reports their
// cosine distance against the configured threshold.
func (e *LocalEngine) Compare(ctx context.Context, imagePathA, imagePathB string) (engine.Verification, error) {
	imgA, err := imagecodec.DecodeFile(imagePathA)
	if err != nil {
		return engine.Verification{}, err
	}
	imgB, err := imagecodec.DecodeFile(imagePathB)
	if err != nil {
		return engine.Verification{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.embedBest(imgA)
	if err != nil {
		return engine.Verification{}, fmt.Errorf("first image: %w", err)
	}
	b, err := e.embedBest(imgB)
	if err != nil {
		return engine.Verification{}, fmt.Errorf("second image: %w", err)
	}

	dist := CosineDistance(a, b)
	return engine.Verification{
		Verified:  dist <= e.threshold,
		Distance:  dist,
		Threshold: e.threshold,
	}, nil
}

// Ping always succeeds once the models are loaded.
func (e *LocalEngine) Ping(ctx context.Context) error {
	return nil
}

func (e *LocalEngine) detect(img image.Image) ([]Detection, error) {
	detections, err := e.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return detections, nil
}

func (e *LocalEngine) embedBest(img image.Image) ([]float32, error) {
	detections, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, engine.ErrNoFace
	}

	// Detect sorts by confidence.
	crop := cropFace(img, detections[0].BBox)
	if crop == nil {
		return nil, fmt.Errorf("failed to crop face")
	}

	embedding, err := e.embedder.Embed(crop)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return embedding, nil
}

// Close releases both ONNX sessions.
func (e *LocalEngine) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}

// CosineDistance returns 1 - cosine similarity. Mismatched or zero vectors
// are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// InitRuntime points onnxruntime_go at the platform shared library and
// initialises the environment. Call DestroyRuntime on shutdown.
func InitRuntime(libPath string) error {
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

func DestroyRuntime() {
	_ = ort.DestroyEnvironment()
}

// DefaultLibPath returns the ONNX Runtime shared library name for the
// current OS.
func DefaultLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
