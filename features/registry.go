package features

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/features/config"
)

// Factory builds the stages a token expands to.
type Factory func(p config.Params) ([]Stage, error)

// Registry maps pipeline tokens to their factories.
type Registry struct {
	factories map[string]Factory
	order     []string
}

var errDuplicateToken = errors.New("duplicate feature token")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given token.
func (r *Registry) Register(token string, factory Factory) error {
	if token == "" {
		return errors.New("empty feature token")
	}
	if factory == nil {
		return errors.New("nil factory")
	}
	if _, exists := r.factories[token]; exists {
		return fmt.Errorf("%w: %s", errDuplicateToken, token)
	}

	r.factories[token] = factory
	r.order = append(r.order, token)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(token string, factory Factory) {
	if err := r.Register(token, factory); err != nil {
		panic("features registry: " + err.Error())
	}
}

// Lookup returns the factory for the given token, or nil.
func (r *Registry) Lookup(token string) Factory {
	return r.factories[token]
}

// Tokens lists registered tokens in registration order.
func (r *Registry) Tokens() []string {
	return slices.Clone(r.order)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of built-in stages. The returned
// registry is shared; register custom stages on a NewRegistry instead.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		r.MustRegister("spectrogram", single(newSpectrogramStage))
		r.MustRegister("fbank", chain(newSpectrogramStage, newMelStage))
		r.MustRegister("mfcc", chain(newSpectrogramStage, newMelStage, newLogStage, newDCTStage))
		r.MustRegister("mel", single(newMelStage))
		r.MustRegister("log", single(newLogStage))
		r.MustRegister("abs", single(func(config.Params) (Stage, error) { return Abs{}, nil }))
		r.MustRegister("dct", single(newDCTStage))
		r.MustRegister("cmvn", single(func(p config.Params) (Stage, error) {
			return NewCMVN(p.NormMean, p.NormVar, p.Eps), nil
		}))
		r.MustRegister("gcmvn", single(func(p config.Params) (Stage, error) {
			if p.GCMVNStats == "" {
				return nil, common.Configf("gcmvn needs a gcmvn_stats file")
			}
			return LoadGlobalCMVN(p.GCMVNStats, p.NormMean, p.NormVar, p.Eps)
		}))
		r.MustRegister("aug", single(func(p config.Params) (Stage, error) {
			return NewSpecAugment(SpecAugmentConfig{
				Prob:     p.AugProb,
				WrapStep: p.WrapStep,
				MaskBand: p.MaskBand,
				MaskStep: p.MaskStep,
				NumBands: p.NumAugBands,
				NumSteps: p.NumAugSteps,
			})
		}))
		r.MustRegister("splice", single(func(p config.Params) (Stage, error) {
			return NewSplice(p.LCtx, p.RCtx, p.DSRate)
		}))
		r.MustRegister("delta", single(func(p config.Params) (Stage, error) {
			return NewDelta(p.DeltaCtx, p.DeltaOrder)
		}))
		r.MustRegister("preemph", single(func(p config.Params) (Stage, error) {
			return NewPreEmphasis(p.PreEmphCoeff)
		}))
		r.MustRegister("dcremove", single(func(config.Params) (Stage, error) {
			return NewDCRemoval(), nil
		}))
		defaultRegistry = r
	})
	return defaultRegistry
}

type stageBuilder func(p config.Params) (Stage, error)

func single(b stageBuilder) Factory {
	return chain(b)
}

func chain(builders ...stageBuilder) Factory {
	return func(p config.Params) ([]Stage, error) {
		stages := make([]Stage, 0, len(builders))
		for _, b := range builders {
			s, err := b(p)
			if err != nil {
				return nil, err
			}
			stages = append(stages, s)
		}
		return stages, nil
	}
}

func newSpectrogramStage(p config.Params) (Stage, error) {
	return NewSpectrogram(p.STFTConfig())
}

func newMelStage(p config.Params) (Stage, error) {
	return NewMel(spectral.FFTSize(p.FrameLen, p.RoundPowOfTwo), p.SampleRate, p.NumMels, p.FMin, p.FMax)
}

func newLogStage(p config.Params) (Stage, error) {
	return NewLog(p.Eps), nil
}

func newDCTStage(p config.Params) (Stage, error) {
	return NewDCT(p.NumCeps, p.NumMels, p.Lifter)
}
