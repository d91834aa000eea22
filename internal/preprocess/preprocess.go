// Package preprocess turns uploaded image bytes into the planar float
// tensor the classifier expects.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	Channels = 3

	DefaultMaxBytes  = 10 << 20
	DefaultMaxPixels = 50_000_000
)

var (
	ErrEmpty       = errors.New("empty image payload")
	ErrTooLarge    = errors.New("image too large")
	ErrUnsupported = errors.New("unsupported or malformed image")
)

// Source is a decoded upload.
type Source struct {
	Image  image.Image
	Format string
	Width  int
	Height int
	Bytes  int
}

// Tensor is a flat NCHW float32 buffer.
type Tensor struct {
	Shape []int64
	Data  []float32
}

type Preprocessor struct {
	size      int
	maxBytes  int64
	maxPixels int
	interp    resize.InterpolationFunction
}

type Option func(*Preprocessor)

func WithMaxBytes(n int64) Option {
	return func(p *Preprocessor) { p.maxBytes = n }
}

func WithMaxPixels(n int) Option {
	return func(p *Preprocessor) { p.maxPixels = n }
}

func WithInterpolation(f resize.InterpolationFunction) Option {
	return func(p *Preprocessor) { p.interp = f }
}

func New(size int, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		size:      size,
		maxBytes:  DefaultMaxBytes,
		maxPixels: DefaultMaxPixels,
		interp:    resize.Bilinear,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Preprocessor) Size() int { return p.size }

// Shape returns the tensor shape produced by Tensor.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, Channels, int64(p.size), int64(p.size)}
}

// Decode reads the whole upload, checks its header and decodes it with EXIF
// orientation applied.
func (p *Preprocessor) Decode(r io.Reader) (*Source, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUnsupported)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(p.maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	bounds := img.Bounds()
	return &Source{
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Bytes:  len(data),
	}, nil
}

// Tensor stretches img to size x size, ignoring aspect ratio, and lays the
// normalized channels out as an R plane, a G plane and a B plane.
func (p *Preprocessor) Tensor(img image.Image) *Tensor {
	resized := resize.Resize(uint(p.size), uint(p.size), img, p.interp)
	bounds := resized.Bounds()

	plane := p.size * p.size
	data := make([]float32, Channels*plane)

	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := y*p.size + x
			data[i] = Normalize(c.R)
			data[plane+i] = Normalize(c.G)
			data[2*plane+i] = Normalize(c.B)
		}
	}

	return &Tensor{Shape: p.Shape(), Data: data}
}

func (p *Preprocessor) Process(r io.Reader) (*Tensor, *Source, error) {
	src, err := p.Decode(r)
	if err != nil {
		return nil, nil, err
	}
	return p.Tensor(src.Image), src, nil
}

// Normalize maps a byte in [0,255] linearly onto [-1,1].
func Normalize(v uint8) float32 {
	return (float32(v)/255 - 0.5) / 0.5
}
