// Package config defines the feature pipeline configuration surface and its
// YAML loader.
package config

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/algorithms/windowing"
)

// Params is the flat parameter set shared by every pipeline stage. Each
// stage reads only the keys it needs.
type Params struct {
	// Feats is the hyphen-delimited stage list, e.g. "fbank-log-cmvn".
	Feats string `yaml:"feats"`

	// STFT
	FrameLen      int    `yaml:"frame_len"`
	FrameHop      int    `yaml:"frame_hop"`
	Window        string `yaml:"window"`
	RoundPowOfTwo bool   `yaml:"round_pow_of_two"`
	STFTBackend   string `yaml:"stft_backend"`

	// Mel / MFCC
	SampleRate int     `yaml:"sr"`
	NumMels    int     `yaml:"num_mels"`
	FMin       float64 `yaml:"fmin"`
	FMax       float64 `yaml:"fmax"` // 0 means sr/2
	NumCeps    int     `yaml:"num_ceps"`
	Lifter     float64 `yaml:"lifter"`

	// Log / CMVN
	Eps        float64 `yaml:"eps"`
	NormMean   bool    `yaml:"norm_mean"`
	NormVar    bool    `yaml:"norm_var"`
	GCMVNStats string  `yaml:"gcmvn_stats"`

	// SpecAugment
	AugProb     float64 `yaml:"aug_prob"`
	WrapStep    int     `yaml:"wrap_step"`
	MaskBand    int     `yaml:"mask_band"`
	MaskStep    int     `yaml:"mask_step"`
	NumAugBands int     `yaml:"num_aug_bands"`
	NumAugSteps int     `yaml:"num_aug_steps"`

	// Splice
	DSRate int `yaml:"ds_rate"`
	LCtx   int `yaml:"lctx"`
	RCtx   int `yaml:"rctx"`

	// Delta
	DeltaCtx   int `yaml:"delta_ctx"`
	DeltaOrder int `yaml:"delta_order"`

	// Waveform conditioning
	PreEmphCoeff float64 `yaml:"preemph_coeff"`

	// LogLevel is read by the command-line driver only.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in parameter set.
func Default() Params {
	return Params{
		Feats:         "fbank-log-cmvn",
		FrameLen:      400,
		FrameHop:      160,
		Window:        string(windowing.FamilyHamming),
		RoundPowOfTwo: true,
		STFTBackend:   string(spectral.BackendKernel),
		SampleRate:    16000,
		NumMels:       80,
		NumCeps:       13,
		Lifter:        0,
		Eps:           common.Epsilon,
		NormMean:      true,
		NormVar:       true,
		AugProb:       0,
		WrapStep:      4,
		MaskBand:      30,
		MaskStep:      40,
		NumAugBands:   2,
		NumAugSteps:   2,
		DSRate:        1,
		LCtx:          1,
		RCtx:          1,
		DeltaCtx:      2,
		DeltaOrder:    2,
		PreEmphCoeff:  0.97,
		LogLevel:      "info",
	}
}

// STFTConfig returns the analysis settings used by the spectrogram stage.
// Feature extraction always uses a one-sided, unnormalised transform.
func (p Params) STFTConfig() spectral.Config {
	return spectral.Config{
		FrameLen:      p.FrameLen,
		FrameHop:      p.FrameHop,
		Window:        windowing.Family(p.Window),
		RoundPowOfTwo: p.RoundPowOfTwo,
		Onesided:      true,
		Backend:       spectral.Backend(p.STFTBackend),
	}
}
