package internal

import (
	"fmt"
	"log/slog"
)

// Pipeline is the set of components one run shares across its workers.
type Pipeline struct {
	Classifier *Classifier
	Extractor  *Extractor
	Detector   *DuplicateDetector
	Ingestor   *Ingestor

	exiftool *ExiftoolStrategy
}

// NewPipeline wires the extraction chain and ingestor for cfg. run is the
// command runner used for ffprobe; nil means ExecRunner.
func NewPipeline(cfg *Config, logger *slog.Logger, run CommandRunner) (*Pipeline, error) {
	logger = orDiscard(logger)
	p := &Pipeline{
		Classifier: NewClassifier(cfg.ImageExt, cfg.VideoExt),
		Detector:   NewDuplicateDetector(logger),
	}

	strategies := []DateStrategy{
		NewExifStrategy(),
		NewFFprobeStrategy(cfg.FFprobePath, run),
	}
	if cfg.UseExifTool {
		et, err := NewExiftoolStrategy(cfg.ExifToolPath)
		if err != nil {
			return nil, fmt.Errorf("exiftool requested but unavailable: %w", err)
		}
		p.exiftool = et
		strategies = append(strategies, et)
	}
	p.Extractor = NewExtractor(logger, strategies...)

	var opts []IngestorOption
	if !cfg.SkipDuplicates {
		opts = append(opts, WithUniqueNames())
	}
	p.Ingestor = NewIngestor(p.Classifier, p.Extractor, p.Detector, logger, opts...)
	return p, nil
}

// Close stops the exiftool process, if one was started.
func (p *Pipeline) Close() error {
	if p.exiftool != nil {
		return p.exiftool.Close()
	}
	return nil
}
