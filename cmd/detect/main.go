// Command detect classifies image files from the command line.
//
//	detect [-config config/config.yaml] banana.jpg other.png
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/banana-detector/internal/app"
	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/detector"
	"github.com/Brownie44l1/banana-detector/internal/model"
)

var configPath = flag.String("config", "", "path to config file (default ./config/config.yaml)")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := config.SetupLogging(config.LogConfig{Level: "warn", Format: "text"}); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	det, session, err := app.Build(cfg, app.OpenONNX)
	if err != nil {
		logrus.Fatalf("Failed to initialize detector: %v", err)
	}
	defer session.Close()

	if failed := run(os.Stdout, det, flag.Args()); failed > 0 {
		session.Close()
		os.Exit(1)
	}
}

// run classifies each path and returns how many ended in the error state.
func run(w io.Writer, det *detector.Detector, paths []string) int {
	failed := 0
	for _, path := range paths {
		res, err := detectFile(det, path)
		if err != nil {
			logrus.WithError(err).WithField("file", path).Warn("prediction failed")
			fmt.Fprintf(w, "%s: %s\n", path, model.VerdictError)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: %s (p=%.4f)\n", path, res.Verdict, res.Probability)
	}
	return failed
}

func detectFile(det *detector.Detector, path string) (*detector.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return det.Detect(f)
}
