package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// tensorSpec names one model input or output and its fixed shape.
type tensorSpec struct {
	name  string
	shape ort.Shape
}

// session is an ONNX session bound to preallocated tensors. Run overwrites
// the outputs in place, so callers must serialise access.
type session struct {
	s       *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

func newSession(modelPath string, in tensorSpec, outs []tensorSpec, opts *ort.SessionOptions) (*session, error) {
	sess := &session{}

	input, err := ort.NewEmptyTensor[float32](in.shape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	sess.input = input

	names := make([]string, len(outs))
	values := make([]ort.Value, len(outs))
	for i, spec := range outs {
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			sess.destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		sess.outputs = append(sess.outputs, t)
		names[i] = spec.name
		values[i] = t
	}

	s, err := ort.NewAdvancedSession(modelPath,
		[]string{in.name},
		names,
		[]ort.Value{input},
		values,
		opts,
	)
	if err != nil {
		sess.destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}
	sess.s = s
	return sess, nil
}

// run copies data into the input tensor and executes the model.
func (s *session) run(data []float32) error {
	copy(s.input.GetData(), data)
	return s.s.Run()
}

func (s *session) output(i int) []float32 {
	return s.outputs[i].GetData()
}

func (s *session) destroy() {
	if s.s != nil {
		s.s.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	for _, t := range s.outputs {
		t.Destroy()
	}
}
