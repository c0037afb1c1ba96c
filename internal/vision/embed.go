package vision

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	embInputSize = 112
	embDim       = 512
)

// Embedder computes ArcFace (w600k_r50) face embeddings.
type Embedder struct {
	sess *session
}

func NewEmbedder(modelPath string, opts *ort.SessionOptions) (*Embedder, error) {
	in := tensorSpec{"input.1", ort.NewShape(1, 3, embInputSize, embInputSize)}
	out := []tensorSpec{{"683", ort.NewShape(1, embDim)}}
	sess, err := newSession(modelPath, in, out, opts)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return &Embedder{sess: sess}, nil
}

// Embed returns the L2-normalised embedding of a face crop.
func (e *Embedder) Embed(face image.Image) ([]float32, error) {
	if err := e.sess.run(preprocessForEmbedding(face, embInputSize, embInputSize)); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}
	embedding := make([]float32, embDim)
	copy(embedding, e.sess.output(0))
	l2Normalize(embedding)
	return embedding, nil
}

func (e *Embedder) Close() {
	e.sess.destroy()
}

func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
