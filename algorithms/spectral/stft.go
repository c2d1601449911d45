package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/algorithms/windowing"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Backend selects how frames are transformed.
type Backend string

const (
	// BackendKernel projects frames onto the precomputed DFT kernel.
	BackendKernel Backend = "kernel"
	// BackendFFT runs go-dsp's FFT per frame.
	BackendFFT Backend = "fft"
)

// Config holds the STFT parameters shared by analysis and synthesis.
type Config struct {
	FrameLen      int              `json:"frame_len" yaml:"frame_len"`
	FrameHop      int              `json:"frame_hop" yaml:"frame_hop"`
	Window        windowing.Family `json:"window" yaml:"window"`
	RoundPowOfTwo bool             `json:"round_pow_of_two" yaml:"round_pow_of_two"`
	Normalized    bool             `json:"normalized" yaml:"normalized"`
	Onesided      bool             `json:"onesided" yaml:"onesided"`
	Backend       Backend          `json:"backend" yaml:"backend"`
}

// DefaultConfig returns 25 ms / 10 ms framing at 16 kHz with a one-sided
// 512-point transform.
func DefaultConfig() Config {
	return Config{
		FrameLen:      400,
		FrameHop:      160,
		Window:        windowing.FamilySqrtHann,
		RoundPowOfTwo: true,
		Onesided:      true,
		Backend:       BackendKernel,
	}
}

// Validate checks sizes and names.
func (c Config) Validate() error {
	if c.FrameLen <= 0 {
		return common.Configf("frame_len must be positive: %d", c.FrameLen)
	}
	if c.FrameHop <= 0 {
		return common.Configf("frame_hop must be positive: %d", c.FrameHop)
	}
	if _, err := windowing.ParseFamily(string(c.Window)); err != nil {
		return err
	}
	switch c.Backend {
	case "", BackendKernel, BackendFFT:
	default:
		return common.Configf("unknown stft backend: %q", c.Backend)
	}
	return nil
}

// Option configures an STFT or ISTFT engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger logging.Logger
}

// WithLogger sets the logger used for construction and failure messages.
func WithLogger(logger logging.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// engine holds the immutable state shared by both directions.
type engine struct {
	cfg     Config
	window  *windowing.Window
	kernel  *Kernel
	fft     *FFT
	fftSize int
	numBins int
	logger  logging.Logger
}

func newEngine(component string, cfg Config, inverse bool, opts []Option) (*engine, error) {
	o := engineOptions{logger: logging.GetGlobalLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.WithFields(logging.Fields{"component": component})

	if cfg.Backend == "" {
		cfg.Backend = BackendKernel
	}
	if err := cfg.Validate(); err != nil {
		logger.Error(err, "Invalid STFT configuration")
		return nil, err
	}

	window, err := windowing.Build(cfg.Window, cfg.FrameLen)
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		window:  window,
		fftSize: FFTSize(cfg.FrameLen, cfg.RoundPowOfTwo),
		logger:  logger,
	}
	e.numBins = e.fftSize
	if cfg.Onesided {
		e.numBins = e.fftSize/2 + 1
	}

	switch cfg.Backend {
	case BackendFFT:
		e.fft = NewFFT(e.fftSize, cfg.Normalized)
	default:
		e.kernel, err = BuildKernel(cfg.FrameLen, window.Coefficients(), cfg.RoundPowOfTwo, cfg.Normalized, inverse)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("STFT engine ready", logging.Fields{
		"frame_len": cfg.FrameLen,
		"frame_hop": cfg.FrameHop,
		"window":    window.Family(),
		"fft_size":  e.fftSize,
		"num_bins":  e.numBins,
		"backend":   cfg.Backend,
		"inverse":   inverse,
	})

	return e, nil
}

// NumBins returns B/2+1 when one-sided, B otherwise.
func (e *engine) NumBins() int { return e.numBins }

// FFTSize returns B.
func (e *engine) FFTSize() int { return e.fftSize }

// FrameLen returns the frame length in samples.
func (e *engine) FrameLen() int { return e.cfg.FrameLen }

// FrameHop returns the hop between frames in samples.
func (e *engine) FrameHop() int { return e.cfg.FrameHop }

// Config returns the engine configuration.
func (e *engine) Config() Config { return e.cfg }

// NumFrames maps sample counts to frame counts. Every count not strictly
// greater than frame_len is reported in the returned error.
func (e *engine) NumFrames(sampleCounts []int) ([]int, error) {
	var short []int
	for _, s := range sampleCounts {
		if s <= e.cfg.FrameLen {
			short = append(short, s)
		}
	}
	if len(short) > 0 {
		return nil, &common.InsufficientSamplesError{FrameLen: e.cfg.FrameLen, Counts: short}
	}

	frames := make([]int, len(sampleCounts))
	for i, s := range sampleCounts {
		frames[i] = (s-e.cfg.FrameLen)/e.cfg.FrameHop + 1
	}
	return frames, nil
}

// STFT is the analysis direction.
type STFT struct {
	*engine
	analysis *mat.Dense
}

// NewSTFT builds an analysis engine.
func NewSTFT(cfg Config, opts ...Option) (*STFT, error) {
	e, err := newEngine("stft", cfg, false, opts)
	if err != nil {
		return nil, err
	}
	s := &STFT{engine: e}
	if e.kernel != nil {
		s.analysis = e.kernel.Planes(e.numBins)
	}
	return s, nil
}

// Forward transforms an N×S or N×C×S waveform into spectra of shape
// N×(C)×F×T in the requested format.
func (s *STFT) Forward(wav *tensor.Tensor, format Format) (*Spectra, error) {
	if wav.Rank() != 2 && wav.Rank() != 3 {
		err := common.Shapef("expect 2D/3D tensor, but got %dD", wav.Rank())
		s.logger.Error(err, "STFT forward failed")
		return nil, err
	}

	numSamples := wav.Dim(-1)
	if numSamples < s.cfg.FrameLen {
		return nil, &common.InsufficientSamplesError{FrameLen: s.cfg.FrameLen, Counts: []int{numSamples}}
	}

	numFrames := (numSamples-s.cfg.FrameLen)/s.cfg.FrameHop + 1
	rows := wav.Size() / numSamples
	plane := s.numBins * numFrames

	outShape := append(append([]int{}, wav.Shape[:wav.Rank()-1]...), s.numBins, numFrames)
	re := tensor.New(outShape...)
	im := tensor.New(outShape...)

	for r := range rows {
		x := wav.Data[r*numSamples : (r+1)*numSamples]
		if s.kernel != nil {
			s.projectRow(x, numFrames, re.Data[r*plane:(r+1)*plane], im.Data[r*plane:(r+1)*plane])
		} else if err := s.fftRow(x, numFrames, re.Data[r*plane:(r+1)*plane], im.Data[r*plane:(r+1)*plane]); err != nil {
			return nil, err
		}
	}

	return newSpectra(re, im, format)
}

// projectRow frames one signal into an L×T matrix and multiplies it by the
// truncated kernel. re and im receive F×T planes.
func (s *STFT) projectRow(x []float64, numFrames int, re, im []float64) {
	frameLen, hop := s.cfg.FrameLen, s.cfg.FrameHop

	frames := mat.NewDense(frameLen, numFrames, nil)
	for t := range numFrames {
		for n := range frameLen {
			frames.Set(n, t, x[t*hop+n])
		}
	}

	out := mat.NewDense(2*s.numBins, numFrames, nil)
	out.Mul(s.analysis, frames)

	raw := out.RawMatrix()
	for k := range s.numBins {
		copy(re[k*numFrames:(k+1)*numFrames], raw.Data[k*raw.Stride:k*raw.Stride+numFrames])
		off := (s.numBins + k) * raw.Stride
		copy(im[k*numFrames:(k+1)*numFrames], raw.Data[off:off+numFrames])
	}
}

func (s *STFT) fftRow(x []float64, numFrames int, re, im []float64) error {
	frameLen, hop := s.cfg.FrameLen, s.cfg.FrameHop

	frame := make([]float64, frameLen)
	binRe := make([]float64, s.numBins)
	binIm := make([]float64, s.numBins)

	for t := range numFrames {
		copy(frame, x[t*hop:t*hop+frameLen])
		if err := s.window.ApplyInPlace(frame); err != nil {
			return fmt.Errorf("failed to window frame %d: %w", t, err)
		}
		s.fft.Compute(frame, binRe, binIm)
		for k := range s.numBins {
			re[k*numFrames+t] = binRe[k]
			im[k*numFrames+t] = binIm[k]
		}
	}
	return nil
}
