package model

import (
	"encoding/json"
	"fmt"
	"os"
)

type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
}

func DefaultMetadata(imageSize int) Metadata {
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, 3, int64(imageSize), int64(imageSize)},
		OutputShape: []int64{1, 1},
		ImageSize:   imageSize,
	}
}

// LoadMetadata reads a model_metadata.json file. Fields it omits keep the
// values from base.
func LoadMetadata(path string, base Metadata) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	meta := base
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta, nil
}

// Validate checks that the input is a single NCHW RGB image of
// ImageSize x ImageSize and that the output has at least one element.
func (m Metadata) Validate() error {
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("input and output names are required")
	}
	s := int64(m.ImageSize)
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 3 ||
		m.InputShape[2] != s || m.InputShape[3] != s {
		return fmt.Errorf("input shape %v does not match [1 3 %d %d]", m.InputShape, s, s)
	}
	if volume(m.OutputShape) < 1 {
		return fmt.Errorf("output shape %v is empty", m.OutputShape)
	}
	return nil
}

func (m Metadata) InputSize() int { return int(volume(m.InputShape)) }

func (m Metadata) OutputSize() int { return int(volume(m.OutputShape)) }

func volume(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Verdict     Verdict `json:"verdict"`
	Message     string  `json:"message"`
	Probability float32 `json:"probability"`
	Format      string  `json:"format,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	ElapsedMS   int64   `json:"elapsed_ms"`
}

type ErrorResponse struct {
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message"`
}
