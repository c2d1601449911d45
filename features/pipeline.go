package features

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/features/config"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/observe"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Pipeline is an ordered chain of stages built once from a token string.
// It holds only immutable state and is safe for concurrent use.
type Pipeline struct {
	feats          string
	stages         []Stage
	framer         Framer
	featsDim       int
	downsampleRate int
	logger         logging.Logger
	metrics        *observe.Metrics
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	registry *Registry
	logger   logging.Logger
	metrics  *observe.Metrics
}

// WithRegistry resolves tokens against r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *pipelineOptions) { o.registry = r }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *pipelineOptions) { o.logger = logger }
}

// WithMetrics records stage latency, failures and output volume on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *pipelineOptions) { o.metrics = m }
}

// NewPipeline parses feats, e.g. "fbank-log-cmvn", and builds its stages
// from p.
func NewPipeline(feats string, p config.Params, opts ...Option) (*Pipeline, error) {
	o := pipelineOptions{registry: DefaultRegistry(), logger: logging.GetGlobalLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = &logging.NoOpLogger{}
	}
	logger := o.logger.WithFields(logging.Fields{
		"component": "feature_pipeline",
		"feats":     feats,
	})

	if err := config.Validate(p); err != nil {
		logger.Error(err, "Invalid pipeline parameters")
		return nil, err
	}

	pl := &Pipeline{
		feats:          feats,
		downsampleRate: 1,
		logger:         logger,
		metrics:        o.metrics,
	}

	for _, tok := range strings.Split(feats, "-") {
		factory := o.registry.Lookup(tok)
		if factory == nil {
			err := common.Configf("unknown token %q in %q (known: %s)", tok, feats, strings.Join(o.registry.Tokens(), ", "))
			logger.Error(err, "Cannot build feature pipeline")
			return nil, err
		}
		stages, err := factory(p)
		if err != nil {
			logger.Error(err, "Cannot build feature stage", logging.Fields{"token": tok})
			return nil, fmt.Errorf("token %q: %w", tok, err)
		}
		for _, s := range stages {
			pl.append(s)
		}
	}

	logger.Debug("Feature pipeline ready", logging.Fields{
		"stages":          len(pl.stages),
		"feats_dim":       pl.featsDim,
		"downsample_rate": pl.downsampleRate,
	})
	return pl, nil
}

func (pl *Pipeline) append(s Stage) {
	pl.stages = append(pl.stages, s)
	pl.featsDim = s.OutputDim(pl.featsDim)
	pl.downsampleRate *= s.TimeDecimation()
	if f, ok := s.(Framer); ok && pl.framer == nil {
		pl.framer = f
	}
}

// FeatsDim returns the width of the final feature vectors.
func (pl *Pipeline) FeatsDim() int { return pl.featsDim }

// DownsampleRate returns the product of every stage's time decimation.
func (pl *Pipeline) DownsampleRate() int { return pl.downsampleRate }

// Stages returns the stages in execution order.
func (pl *Pipeline) Stages() []Stage {
	return append([]Stage(nil), pl.stages...)
}

func (pl *Pipeline) String() string {
	names := make([]string, len(pl.stages))
	for i, s := range pl.stages {
		names[i] = s.Name()
	}
	return fmt.Sprintf("Pipeline(%s: %s, feats_dim=%d, downsample_rate=%d)",
		pl.feats, strings.Join(names, " -> "), pl.featsDim, pl.downsampleRate)
}

// NumFrames converts sample counts into output frame counts.
func (pl *Pipeline) NumFrames(sampleLengths []int) ([]int, error) {
	if pl.framer == nil {
		return nil, common.Configf("pipeline %q has no framing stage", pl.feats)
	}
	frames, err := pl.framer.NumFrames(sampleLengths)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		frames[i] /= pl.downsampleRate
	}
	return frames, nil
}

// Forward runs every stage over an N×S or N×C×S waveform batch and returns
// the features together with per-utterance frame counts. A nil
// sampleLengths yields nil frame counts.
func (pl *Pipeline) Forward(rc RunContext, wav *tensor.Tensor, sampleLengths []int) (*tensor.Tensor, []int, error) {
	return pl.forward(context.Background(), rc, wav, sampleLengths)
}

func (pl *Pipeline) forward(ctx context.Context, rc RunContext, wav *tensor.Tensor, sampleLengths []int) (*tensor.Tensor, []int, error) {
	if wav.Rank() < 1 {
		return nil, nil, common.Shapef("expect a batched waveform, but got %dD", wav.Rank())
	}
	if sampleLengths != nil && len(sampleLengths) != wav.Dim(0) {
		return nil, nil, common.Shapef("got %d sample lengths for a batch of %d", len(sampleLengths), wav.Dim(0))
	}

	x := wav
	for _, s := range pl.stages {
		start := time.Now()
		y, err := s.Forward(rc, x)
		if pl.metrics != nil {
			pl.metrics.RecordStage(ctx, s.Name(), time.Since(start), err)
		}
		if err != nil {
			pl.logger.Error(err, "Feature stage failed", logging.Fields{"stage": s.Name()})
			return nil, nil, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		x = y
	}

	var frames []int
	if sampleLengths != nil {
		var err error
		if frames, err = pl.NumFrames(sampleLengths); err != nil {
			return nil, nil, err
		}
	}

	if pl.metrics != nil && x.Rank() >= 2 {
		pl.metrics.RecordOutput(ctx, wav.Dim(0), x.Lead()*x.Dim(-2))
	}
	return x, frames, nil
}
