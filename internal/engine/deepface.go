package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DeepFace talks to a DeepFace REST API (deepface/api: /represent, /verify).
type DeepFace struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
}

func NewDeepFace(baseURL string, timeout time.Duration, opts Options) *DeepFace {
	return &DeepFace{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
}

type representResult struct {
	Embedding      []float64 `json:"embedding"`
	FaceConfidence float64   `json:"face_confidence"`
	FacialArea     struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"facial_area"`
}

type representResponse struct {
	Results []representResult `json:"results"`
}

type verifyRequest struct {
	Img1            string `json:"img1"`
	Img2            string `json:"img2"`
	ModelName       string `json:"model_name"`
	DetectorBackend string `json:"detector_backend"`
	DistanceMetric  string `json:"distance_metric"`
}

type verifyResponse struct {
	Verified  bool    `json:"verified"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CountFaces counts detected regions whose confidence reaches the detection
// threshold. Detection is not enforced, so DeepFace answers with a single
// zero-confidence whole-image region when it finds nothing.
func (d *DeepFace) CountFaces(ctx context.Context, imagePath string) (int, error) {
	results, err := d.represent(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range results {
		if r.FaceConfidence >= d.opts.DetectionThreshold {
			n++
		}
	}
	return n, nil
}

// Embed returns the embedding of the most confident face.
func (d *DeepFace) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	results, err := d.represent(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoFace
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.FaceConfidence > best.FaceConfidence {
			best = r
		}
	}

	embedding := make([]float32, len(best.Embedding))
	for i, v := range best.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (d *DeepFace) Compare(ctx context.Context, imagePathA, imagePathB string) (Verification, error) {
	img1, err := dataURI(imagePathA)
	if err != nil {
		return Verification{}, err
	}
	img2, err := dataURI(imagePathB)
	if err != nil {
		return Verification{}, err
	}

	var resp verifyResponse
	err = d.post(ctx, "/verify", verifyRequest{
		Img1:            img1,
		Img2:            img2,
		ModelName:       d.opts.ModelName,
		DetectorBackend: d.opts.DetectorBackend,
		DistanceMetric:  d.opts.DistanceMetric,
	}, &resp)
	if err != nil {
		return Verification{}, err
	}

	return Verification{
		Verified:  resp.Verified,
		Distance:  resp.Distance,
		Threshold: resp.Threshold,
	}, nil
}

// Ping checks that the DeepFace API answers on its root route.
func (d *DeepFace) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deepface unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deepface status %d", resp.StatusCode)
	}
	return nil
}

func (d *DeepFace) represent(ctx context.Context, imagePath string) ([]representResult, error) {
	img, err := dataURI(imagePath)
	if err != nil {
		return nil, err
	}

	var resp representResponse
	err = d.post(ctx, "/represent", representRequest{
		Img:              img,
		ModelName:        d.opts.ModelName,
		DetectorBackend:  d.opts.DetectorBackend,
		EnforceDetection: false,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (d *DeepFace) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deepface %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("deepface %s: status %d: %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("deepface %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// dataURI loads an image file as a base64 data URI, the form DeepFace accepts
// for images that live outside its own filesystem.
func dataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
