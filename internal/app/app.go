// Package app assembles the detector from configuration. It is shared by the
// HTTP server and the CLI.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/detector"
	"github.com/Brownie44l1/banana-detector/internal/model"
	"github.com/Brownie44l1/banana-detector/internal/preprocess"
)

// SessionFactory opens a model session. It is swapped out in tests.
type SessionFactory func(modelPath, libraryPath string, meta model.Metadata) (model.Session, error)

func OpenONNX(modelPath, libraryPath string, meta model.Metadata) (model.Session, error) {
	return model.NewServer(modelPath, libraryPath, meta)
}

func Metadata(cfg config.ModelConfig) (model.Metadata, error) {
	meta := model.DefaultMetadata(cfg.ImageSize)
	meta.InputName = cfg.InputName
	meta.OutputName = cfg.OutputName

	if cfg.MetadataPath != "" {
		var err error
		meta, err = model.LoadMetadata(cfg.MetadataPath, meta)
		if err != nil {
			return model.Metadata{}, err
		}
	}
	if err := meta.Validate(); err != nil {
		return model.Metadata{}, err
	}
	return meta, nil
}

// Build loads the model and returns a ready detector together with the
// session, which the caller must Close.
func Build(cfg *config.Config, open SessionFactory) (*detector.Detector, model.Session, error) {
	meta, err := Metadata(cfg.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("model metadata: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"model":        cfg.Model.Path,
		"input":        meta.InputName,
		"input_shape":  meta.InputShape,
		"output":       meta.OutputName,
		"output_shape": meta.OutputShape,
	}).Info("loading model")

	session, err := open(cfg.Model.Path, cfg.Model.LibraryPath, meta)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize model session: %w", err)
	}

	pre := preprocess.New(meta.ImageSize, preprocess.WithMaxBytes(cfg.Server.MaxUploadBytes))
	return detector.New(session, pre, float32(cfg.Model.Threshold)), session, nil
}
