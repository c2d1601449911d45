package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/algorithms/windowing"
)

// Load reads the YAML configuration file at path and returns validated
// [Params]. Keys missing from the file keep their [Default] values.
func Load(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadFromReader(f)
	if err != nil {
		return Params{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("%w: decode yaml: %w", common.ErrConfig, err)
	}
	if err := Validate(p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that p contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(p Params) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, common.Configf(format, args...))
	}

	if strings.TrimSpace(p.Feats) == "" {
		fail("feats is required")
	}

	// STFT
	if p.FrameLen <= 0 {
		fail("frame_len %d must be positive", p.FrameLen)
	}
	if p.FrameHop <= 0 {
		fail("frame_hop %d must be positive", p.FrameHop)
	}
	if _, err := windowing.ParseFamily(p.Window); err != nil {
		errs = append(errs, err)
	}
	switch p.STFTBackend {
	case "", "kernel", "fft":
	default:
		fail("stft_backend %q is invalid; valid values: kernel, fft", p.STFTBackend)
	}

	// Mel / MFCC
	if p.SampleRate <= 0 {
		fail("sr %d must be positive", p.SampleRate)
	}
	if p.NumMels <= 0 {
		fail("num_mels %d must be positive", p.NumMels)
	}
	if p.NumCeps <= 0 || p.NumCeps > p.NumMels {
		fail("num_ceps %d is out of range [1, %d]", p.NumCeps, p.NumMels)
	}
	if p.Lifter < 0 {
		fail("lifter %v must not be negative", p.Lifter)
	}
	if p.FMin < 0 {
		fail("fmin %v must not be negative", p.FMin)
	}
	if p.FMax < 0 || (p.FMax > 0 && p.FMax <= p.FMin) {
		fail("fmax %v must be 0 or greater than fmin %v", p.FMax, p.FMin)
	}

	if p.Eps <= 0 {
		fail("eps %v must be positive", p.Eps)
	}

	// SpecAugment
	if p.AugProb < 0 || p.AugProb > 1 {
		fail("aug_prob %v is out of range [0, 1]", p.AugProb)
	}
	for _, c := range []struct {
		key string
		v   int
	}{
		{"wrap_step", p.WrapStep},
		{"mask_band", p.MaskBand},
		{"mask_step", p.MaskStep},
		{"num_aug_bands", p.NumAugBands},
		{"num_aug_steps", p.NumAugSteps},
		{"lctx", p.LCtx},
		{"rctx", p.RCtx},
		{"delta_order", p.DeltaOrder},
	} {
		if c.v < 0 {
			fail("%s %d must not be negative", c.key, c.v)
		}
	}

	if p.DSRate < 1 {
		fail("ds_rate %d must be at least 1", p.DSRate)
	}
	if p.DeltaCtx < 1 {
		fail("delta_ctx %d must be at least 1", p.DeltaCtx)
	}
	if p.PreEmphCoeff < 0 || p.PreEmphCoeff >= 1 {
		fail("preemph_coeff %v is out of range [0, 1)", p.PreEmphCoeff)
	}

	switch p.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fail("log_level %q is invalid; valid values: debug, info, warn, error", p.LogLevel)
	}

	return errors.Join(errs...)
}
