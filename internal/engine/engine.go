// Package engine defines the face-recognition capability the service
// delegates to, and the DeepFace REST implementation of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/observability"
)

var (
	ErrNoFace        = errors.New("no face detected")
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// Verification is the outcome of comparing two face images.
// Distance is lower for more similar faces; Verified means Distance <= Threshold.
type Verification struct {
	Verified  bool
	Distance  float64
	Threshold float64
}

// Engine detects, embeds and compares faces in image files.
type Engine interface {
	CountFaces(ctx context.Context, imagePath string) (int, error)
	Embed(ctx context.Context, imagePath string) ([]float32, error)
	Compare(ctx context.Context, imagePathA, imagePathB string) (Verification, error)
	Ping(ctx context.Context) error
}

// ExtractSingle counts faces in imagePath and returns the embedding only when
// exactly one face is present. Zero and several faces map to ErrNoFace and
// ErrMultipleFaces.
func ExtractSingle(ctx context.Context, e Engine, imagePath string) ([]float32, error) {
	n, err := e.CountFaces(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("count faces: %w", err)
	}
	switch {
	case n == 0:
		return nil, ErrNoFace
	case n > 1:
		return nil, ErrMultipleFaces
	}

	embedding, err := e.Embed(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return embedding, nil
}

// Instrument wraps e so every call is timed into the engine duration histogram.
func Instrument(e Engine) Engine {
	return &instrumented{next: e}
}

type instrumented struct {
	next Engine
}

func (i *instrumented) CountFaces(ctx context.Context, imagePath string) (int, error) {
	defer observe("count", time.Now())
	return i.next.CountFaces(ctx, imagePath)
}

func (i *instrumented) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	defer observe("embed", time.Now())
	return i.next.Embed(ctx, imagePath)
}

func (i *instrumented) Compare(ctx context.Context, a, b string) (Verification, error) {
	defer observe("compare", time.Now())
	return i.next.Compare(ctx, a, b)
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func observe(op string, start time.Time) {
	observability.EngineDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Options carries the tunables shared by every engine backend.
type Options struct {
	ModelName          string
	DistanceMetric     string
	DetectorBackend    string
	DetectionThreshold float64
	Threshold          float64
}

func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		ModelName:          cfg.ModelName,
		DistanceMetric:     cfg.DistanceMetric,
		DetectorBackend:    cfg.DetectorBackend,
		DetectionThreshold: cfg.DetectionThreshold,
		Threshold:          cfg.Threshold,
	}
}
