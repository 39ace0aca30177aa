package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.WithField("component", "cli")

// pipeline is the roster plus the recognition stack built from config.
type pipeline struct {
	cfg          *config.Config
	store        *roster.Store
	encoder      facerec.Encoder
	references   *facerec.ReferenceCache
	matcher      *facerec.Matcher
	closeEncoder func() error
}

// addRecognitionFlags registers flags that override the recognition config.
func addRecognitionFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "Face encoder backend: http or dlib (overrides RECOGNITION_BACKEND)")
	cmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (overrides RECOGNITION_METRIC)")
	cmd.Flags().Float64("threshold", 0, "Maximum distance accepted as a match (overrides RECOGNITION_THRESHOLD)")
	cmd.Flags().String("strategy", "", "Match strategy: first or closest (overrides RECOGNITION_STRATEGY)")
}

// applyRecognitionFlags copies changed recognition flags into cfg.
func applyRecognitionFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Lookup("backend") == nil {
		return
	}
	if v := mustGetString(cmd, "backend"); v != "" {
		cfg.Recognition.Backend = v
	}
	if v := mustGetString(cmd, "metric"); v != "" {
		cfg.Recognition.Metric = v
	}
	if v := mustGetFloat64(cmd, "threshold"); v > 0 {
		cfg.Recognition.Threshold = v
	}
	if v := mustGetString(cmd, "strategy"); v != "" {
		cfg.Recognition.Strategy = v
	}
}

// openRoster loads the roster. A corrupted file is reported and replaced by
// an empty roster; any other failure is returned.
func openRoster(cfg *config.Config) (*roster.Store, error) {
	store, err := roster.Open(cfg.Roster.Path)
	if err != nil {
		if errors.Is(err, domain.ErrDataCorruption) {
			fmt.Fprintf(os.Stderr, "Warning: %v\nContinuing with an empty roster.\n", err)
			return store, nil
		}
		return nil, err
	}
	return store, nil
}

// newPipeline builds the recognition stack for cmd.
func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg := config.Load()
	applyRecognitionFlags(cmd, cfg)

	metric, err := facerec.ParseMetric(cfg.Recognition.Metric)
	if err != nil {
		return nil, err
	}
	strategy, err := facerec.ParseStrategy(cfg.Recognition.Strategy)
	if err != nil {
		return nil, err
	}
	threshold := cfg.Recognition.Threshold
	// The embedded default is tuned for euclidean distance.
	if metric == facerec.MetricCosine && threshold == config.Defaults().Recognition.Threshold &&
		os.Getenv("RECOGNITION_THRESHOLD") == "" && !cmd.Flags().Changed("threshold") {
		threshold = facerec.DefaultThreshold(metric)
	}

	store, err := openRoster(cfg)
	if err != nil {
		return nil, err
	}

	encoder, closeEncoder, err := facerec.NewEncoder(facerec.EncoderOptions{
		Backend:      cfg.Recognition.Backend,
		EmbeddingURL: cfg.Recognition.EmbeddingURL,
		ModelsDir:    cfg.Recognition.ModelsDir,
		MaxSize:      cfg.Camera.MaxFrameSize,
	})
	if err != nil {
		return nil, fmt.Errorf("creating face encoder: %w", err)
	}

	references := facerec.NewReferenceCache(encoder, cfg.Recognition.CacheTTL)
	matcher := facerec.NewMatcher(references, facerec.MatcherOptions{
		Metric:    metric,
		Threshold: threshold,
		Strategy:  strategy,
	})

	log.WithFields(logrus.Fields{
		"backend":   cfg.Recognition.Backend,
		"metric":    metric,
		"threshold": threshold,
		"strategy":  strategy,
		"students":  store.Len(),
	}).Debug("recognition pipeline ready")

	return &pipeline{
		cfg:          cfg,
		store:        store,
		encoder:      encoder,
		references:   references,
		matcher:      matcher,
		closeEncoder: closeEncoder,
	}, nil
}

// Close releases the encoder.
func (p *pipeline) Close() error {
	return p.closeEncoder()
}

// newProcessor creates a session and the frame processor recording into it.
func (p *pipeline) newProcessor() *attendance.Processor {
	session := attendance.NewSession(nil, attendance.WithResetOnStart(p.cfg.Session.ResetOnStart))
	return attendance.NewProcessor(p.encoder, p.matcher, p.store, session)
}

// warmUp encodes every reference photo so the first frame is not slowed
// down. It returns the per-student failures.
func (p *pipeline) warmUp(ctx context.Context, showProgress bool) []error {
	students := p.store.All()
	if len(students) == 0 {
		return nil
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(students),
			progressbar.OptionSetDescription("Encoding reference photos"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	var errs []error
	for _, s := range students {
		if _, err := p.references.Reference(ctx, s.PhotoPath); err != nil {
			errs = append(errs, fmt.Errorf("student %q: %w", s.Name, err))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	return errs
}

// sourceFactory opens the configured frame source: a directory replay when
// framesDir is set, the camera device otherwise.
func sourceFactory(device int, framesDir string, cfg *config.Config) attendance.SourceFactory {
	return func(context.Context) (camera.Source, error) {
		if framesDir != "" {
			src, err := camera.NewDirSource(framesDir, cfg.Camera.FrameInterval)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
		dev, err := camera.OpenDevice(device)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// printReferenceErrors reports roster entries that cannot be matched.
func printReferenceErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %d student(s) will not be recognized:\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}
