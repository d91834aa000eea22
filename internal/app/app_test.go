package app

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/model"
)

type recordingSession struct {
	inputLen int
}

func (s *recordingSession) Run(input []float32) ([]float32, error) {
	s.inputLen = len(input)
	return []float32{0.05}, nil
}

func (s *recordingSession) Close() {}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Path = "models/test.onnx"

	session := &recordingSession{}
	var gotPath string
	var gotMeta model.Metadata
	open := func(modelPath, libraryPath string, meta model.Metadata) (model.Session, error) {
		gotPath, gotMeta = modelPath, meta
		return session, nil
	}

	d, s, err := Build(cfg, open)
	require.NoError(t, err)
	assert.Same(t, session, s)
	assert.Equal(t, "models/test.onnx", gotPath)
	assert.Equal(t, []int64{1, 3, 224, 224}, gotMeta.InputShape)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 5))))
	res, err := d.Detect(&buf)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBanana, res.Verdict)
	assert.Equal(t, 3*224*224, session.inputLen)
}

func TestBuildOpenError(t *testing.T) {
	open := func(string, string, model.Metadata) (model.Session, error) {
		return nil, errors.New("no runtime")
	}

	_, _, err := Build(testConfig(t), open)
	assert.Error(t, err)
}

func TestMetadataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input_name":"pixel_values","output_shape":[1]}`), 0o644))

	cfg := testConfig(t)
	cfg.Model.MetadataPath = path

	meta, err := Metadata(cfg.Model)
	require.NoError(t, err)
	assert.Equal(t, "pixel_values", meta.InputName)
	assert.Equal(t, "output", meta.OutputName)
	assert.Equal(t, []int64{1}, meta.OutputShape)
}

func TestMetadataMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input_shape":[1,3,299,299]}`), 0o644))

	cfg := testConfig(t)
	cfg.Model.MetadataPath = path

	_, err := Metadata(cfg.Model)
	assert.Error(t, err)
}
