// Package transcode reads audio files into waveform tensors and writes
// extracted features to compact binary archives.
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/wav"

	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// ErrUnsupportedFormat is returned for containers the decoder cannot read.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        [][]float64   `json:"-"` // one slice per channel
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
}

// Tensor returns the audio as a 1×S tensor when mono is set (channels
// averaged) or as a 1×C×S tensor otherwise.
func (a *AudioData) Tensor(mono bool) *tensor.Tensor {
	n := 0
	if len(a.PCM) > 0 {
		n = len(a.PCM[0])
	}

	if mono {
		out := tensor.New(1, n)
		if len(a.PCM) == 0 {
			return out
		}
		scale := 1 / float64(len(a.PCM))
		for _, ch := range a.PCM {
			for i, v := range ch {
				out.Data[i] += v * scale
			}
		}
		return out
	}

	out := tensor.New(1, len(a.PCM), n)
	for c, ch := range a.PCM {
		copy(out.Data[c*n:(c+1)*n], ch)
	}
	return out
}

// DecoderConfig holds decoding options
type DecoderConfig struct {
	// TargetSampleRate resamples to this rate when non-zero.
	TargetSampleRate int `json:"target_sample_rate"`
	// ResampleQuality is beep's resampler quality, 1 (fast) to 64.
	ResampleQuality int `json:"resample_quality"`
	// MaxDuration stops decoding after this much audio when non-zero.
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns 16 kHz output with medium resampling quality.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 16000,
		ResampleQuality:  4,
	}
}

// Decoder turns WAV and FLAC data into PCM.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// SetLogger replaces the decoder logger.
func (d *Decoder) SetLogger(logger logging.Logger) {
	d.logger = logger.WithFields(logging.Fields{"component": "audio_decoder"})
}

// GetSupportedFormats lists the file extensions DecodeFile accepts.
func (d *Decoder) GetSupportedFormats() []string {
	return []string{"wav", "flac"}
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	logger.Debug("Starting audio file decode")

	f, err := os.Open(filename)
	if err != nil {
		logger.Error(err, "Failed to open audio file")
		return nil, fmt.Errorf("open %q: %w", filename, err)
	}
	defer f.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	audio, err := d.DecodeReader(f, format)
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, fmt.Errorf("decode %q: %w", filename, err)
	}
	return audio, nil
}

// DecodeBytes decodes an in-memory file of the given format.
func (d *Decoder) DecodeBytes(data []byte, format string) (*AudioData, error) {
	return d.DecodeReader(bytes.NewReader(data), format)
}

// DecodeReader decodes a WAV ("wav") or FLAC ("flac") stream.
func (d *Decoder) DecodeReader(r io.Reader, format string) (*AudioData, error) {
	var (
		stream beep.StreamSeekCloser
		bf     beep.Format
		err    error
	)
	switch format {
	case "wav", "wave":
		stream, bf, err = wav.Decode(r)
	case "flac":
		stream, bf, err = flac.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	channels := bf.NumChannels
	sampleRate := int(bf.SampleRate)

	var src beep.Streamer = stream
	if format != "flac" {
		if gain := wavGain(bf.Precision); gain != 0 {
			src = &effects.Gain{Streamer: src, Gain: gain}
		}
	}
	if target := d.config.TargetSampleRate; target > 0 && target != sampleRate {
		quality := d.config.ResampleQuality
		if quality <= 0 {
			quality = 4
		}
		src = beep.Resample(quality, bf.SampleRate, beep.SampleRate(target), src)
		sampleRate = target
	}

	limit := -1
	if d.config.MaxDuration > 0 {
		limit = beep.SampleRate(sampleRate).N(d.config.MaxDuration)
	}

	pcm := make([][]float64, channels)
	buf := make([][2]float64, 4096)
	for limit != 0 {
		chunk := buf
		if limit > 0 && limit < len(chunk) {
			chunk = chunk[:limit]
		}
		n, ok := src.Stream(chunk)
		for _, frame := range chunk[:n] {
			for c := range channels {
				pcm[c] = append(pcm[c], frame[c])
			}
		}
		if limit > 0 {
			limit -= n
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}

	numSamples := 0
	if channels > 0 {
		numSamples = len(pcm[0])
	}
	audio := &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   beep.SampleRate(sampleRate).D(numSamples),
		Format:     format,
	}

	d.logger.Debug("Audio decoded", logging.Fields{
		"format":      format,
		"sample_rate": sampleRate,
		"input_rate":  int(bf.SampleRate),
		"channels":    channels,
		"samples":     numSamples,
	})
	return audio, nil
}

// wavGain returns the effects.Gain that brings beep's WAV samples to full
// scale. The signed 16- and 24-bit paths divide by 2^n-1 instead of
// 2^(n-1), halving the amplitude. 8-bit samples are already in [-1, 1].
func wavGain(precision int) float64 {
	switch precision {
	case 2:
		return (1<<16-1)/float64(1<<15) - 1
	case 3:
		return (1<<24-1)/float64(1<<23) - 1
	default:
		return 0
	}
}
