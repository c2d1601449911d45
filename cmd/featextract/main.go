// Command featextract decodes audio files and writes their acoustic
// features to binary archives. With -spectra it writes the raw STFT in the
// given format instead (complex and polar planes are stacked on a leading
// axis of size 2).
//
//	featextract -config feats.yaml -outdir feats/ a.wav b.flac
//	featextract -spectra complex -outdir stft/ a.wav
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/features"
	"github.com/RyanBlaney/sonido-frontend/features/config"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/observe"
	"github.com/RyanBlaney/sonido-frontend/tensor"
	"github.com/RyanBlaney/sonido-frontend/transcode"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML parameter file (defaults when empty)")
	feats := flag.String("feats", "", "override the feats token string, e.g. fbank-log-cmvn")
	outDir := flag.String("outdir", ".", "directory for .feats archives")
	precision := flag.String("precision", "float32", "archive precision: float32 or float16")
	workers := flag.Int("workers", 0, "parallel utterances (0 = GOMAXPROCS)")
	jsonLogs := flag.Bool("json", false, "emit JSON logs")
	spectraFormat := flag.String("spectra", "", "write STFT spectra in this format (polar, complex, packed) instead of features")
	flag.Parse()

	opts := options{
		configPath: *configPath,
		feats:      *feats,
		outDir:     *outDir,
		precision:  *precision,
		workers:    *workers,
		jsonLogs:   *jsonLogs,
		spectra:    *spectraFormat,
	}
	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "featextract: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	feats      string
	outDir     string
	precision  string
	workers    int
	jsonLogs   bool
	spectra    string
}

func run(opts options, inputs []string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no input files")
	}

	p := config.Default()
	if opts.configPath != "" {
		var err error
		if p, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.feats != "" {
		p.Feats = opts.feats
	}

	var logger logging.Logger = logging.NewDefaultLogger()
	if opts.jsonLogs {
		logger = logging.NewJSONLogger(os.Stderr)
	}
	level, err := logging.ParseLevel(p.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)

	prec, err := transcode.ParsePrecision(opts.precision)
	if err != nil {
		return err
	}

	dec := transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: p.SampleRate,
		ResampleQuality:  4,
	})
	utts := make([]*tensor.Tensor, len(inputs))
	for i, path := range inputs {
		audio, err := dec.DecodeFile(path)
		if err != nil {
			return err
		}
		utts[i] = audio.Tensor(true)
	}

	var (
		out []*tensor.Tensor
		ext = ".feats"
	)
	if opts.spectra != "" {
		if out, err = spectra(p, opts.spectra, utts, logger); err != nil {
			return err
		}
		ext = ".stft"
	} else {
		pl, err := features.NewPipeline(p.Feats, p,
			features.WithLogger(logger),
			features.WithMetrics(observe.DefaultMetrics()),
		)
		if err != nil {
			return err
		}
		logger.Info("Pipeline built", logging.Fields{"pipeline": pl.String()})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if out, err = pl.ForwardBatch(ctx, features.RunContext{}, utts, opts.workers); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	for i, path := range inputs {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ext
		if err := writeArchive(filepath.Join(opts.outDir, name), out[i], prec); err != nil {
			return err
		}
		logger.Info("Features written", logging.Fields{
			"input":  path,
			"output": name,
			"shape":  out[i].Shape,
		})
	}
	return nil
}

// spectra runs the configured STFT over every utterance and flattens the
// result with Spectra.Tensor.
func spectra(p config.Params, formatName string, utts []*tensor.Tensor, logger logging.Logger) ([]*tensor.Tensor, error) {
	format, err := spectral.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	stft, err := spectral.NewSTFT(p.STFTConfig(), spectral.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	out := make([]*tensor.Tensor, len(utts))
	for i, utt := range utts {
		spec, err := stft.Forward(utt, format)
		if err != nil {
			return nil, fmt.Errorf("utterance %d: %w", i, err)
		}
		if out[i], err = spec.Tensor(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeArchive(path string, t *tensor.Tensor, prec transcode.Precision) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := transcode.WriteFeatures(f, t, prec); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}
