// Package detector runs one upload through preprocessing, the model session
// and the banana threshold.
package detector

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Brownie44l1/banana-detector/internal/model"
	"github.com/Brownie44l1/banana-detector/internal/preprocess"
)

// ErrDetection wraps every failure Detect can return.
var ErrDetection = errors.New("detection failed")

// ErrInvalidInput marks failures caused by the caller's payload rather than
// the model.
var ErrInvalidInput = errors.New("invalid input")

type Result struct {
	Verdict     model.Verdict
	Probability float32
	Format      string
	Width       int
	Height      int
	Elapsed     time.Duration
}

func (r *Result) Response() model.PredictionResponse {
	return model.PredictionResponse{
		Verdict:     r.Verdict,
		Message:     r.Verdict.Message(),
		Probability: r.Probability,
		Format:      r.Format,
		Width:       r.Width,
		Height:      r.Height,
		ElapsedMS:   r.Elapsed.Milliseconds(),
	}
}

type Detector struct {
	session   model.Session
	pre       *preprocess.Preprocessor
	threshold float32
}

func New(session model.Session, pre *preprocess.Preprocessor, threshold float32) *Detector {
	return &Detector{
		session:   session,
		pre:       pre,
		threshold: threshold,
	}
}

func (d *Detector) InputSize() int {
	return preprocess.Channels * d.pre.Size() * d.pre.Size()
}

// Detect decodes an image from r and classifies it.
func (d *Detector) Detect(r io.Reader) (res *Result, err error) {
	start := time.Now()
	defer recoverInto(&err)

	tensor, src, err := d.pre.Process(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrDetection, ErrInvalidInput, err)
	}

	res, err = d.run(tensor.Data)
	if err != nil {
		return nil, err
	}
	res.Format = src.Format
	res.Width = src.Width
	res.Height = src.Height
	res.Elapsed = time.Since(start)
	return res, nil
}

// DetectTensor classifies an already preprocessed planar tensor.
func (d *Detector) DetectTensor(data []float32) (res *Result, err error) {
	start := time.Now()
	defer recoverInto(&err)

	if want := d.InputSize(); len(data) != want {
		return nil, fmt.Errorf("%w: %w: expected %d values, got %d", ErrDetection, ErrInvalidInput, want, len(data))
	}

	res, err = d.run(data)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func (d *Detector) run(data []float32) (*Result, error) {
	out, err := d.session.Run(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: model returned no output", ErrDetection)
	}

	p := out[0]
	if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
		return nil, fmt.Errorf("%w: model returned non-finite score %v", ErrDetection, p)
	}

	return &Result{
		Verdict:     model.Classify(p, d.threshold),
		Probability: p,
	}, nil
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrDetection, r)
	}
}
