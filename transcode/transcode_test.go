package transcode

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"github.com/RyanBlaney/sonido-frontend/internal/testutil"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// writeWAV encodes left/right channels as PCM with the given byte
// precision and returns the path.
func writeWAV(t *testing.T, sampleRate, channels, precision int, left, right []float64) string {
	t.Helper()

	pos := 0
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(left) {
			return 0, false
		}
		n := 0
		for n < len(samples) && pos < len(left) {
			samples[n][0] = left[pos]
			samples[n][1] = right[pos]
			n++
			pos++
		}
		return n, true
	})

	path := filepath.Join(t.TempDir(), "utt.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: channels, Precision: precision}
	if err := wav.Encode(f, src, format); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietDecoder(cfg *DecoderConfig) *Decoder {
	d := NewDecoder(cfg)
	d.SetLogger(&logging.NoOpLogger{})
	return d
}

func TestDecodeWAVMono(t *testing.T) {
	t.Parallel()

	sine := testutil.DeterministicSine(440, 16000, 0.5, 8000)
	path := writeWAV(t, 16000, 1, 2, sine, sine)

	audio, err := quietDecoder(DefaultDecoderConfig()).DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if audio.SampleRate != 16000 || audio.Channels != 1 || audio.Format != "wav" {
		t.Fatalf("audio = %+v", audio)
	}
	if len(audio.PCM) != 1 || len(audio.PCM[0]) != 8000 {
		t.Fatalf("PCM shape = %d×%d", len(audio.PCM), len(audio.PCM[0]))
	}
	if audio.Duration != 500*time.Millisecond {
		t.Fatalf("duration = %v", audio.Duration)
	}
	testutil.RequireSliceNearlyEqual(t, audio.PCM[0], sine, 4.0/32768)

	x := audio.Tensor(true)
	if !slices.Equal(x.Shape, []int{1, 8000}) {
		t.Fatalf("tensor shape = %v", x.Shape)
	}
}

func TestDecodeWAVStereo(t *testing.T) {
	t.Parallel()

	left := testutil.DeterministicSine(300, 8000, 0.4, 2000)
	right := make([]float64, len(left))
	for i := range right {
		right[i] = -left[i]
	}
	path := writeWAV(t, 8000, 2, 2, left, right)

	audio, err := quietDecoder(&DecoderConfig{}).DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if audio.Channels != 2 || audio.SampleRate != 8000 {
		t.Fatalf("audio = %+v", audio)
	}

	multi := audio.Tensor(false)
	if !slices.Equal(multi.Shape, []int{1, 2, 2000}) {
		t.Fatalf("multi-channel shape = %v", multi.Shape)
	}
	testutil.RequireSliceNearlyEqual(t, multi.Data[2000:], right, 4.0/32768)

	// opposite channels cancel
	mono := audio.Tensor(true)
	testutil.RequireSliceNearlyEqual(t, mono.Data, make([]float64, 2000), 4.0/32768)
}

func TestDecodeWAVFullScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		precision int
		eps       float64
	}{
		{name: "8-bit", precision: 1, eps: 2.0 / 255},
		{name: "16-bit", precision: 2, eps: 2.0 / (1 << 15)},
		{name: "24-bit", precision: 3, eps: 2.0 / (1 << 23)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sine := testutil.DeterministicSine(440, 16000, 0.9, 1600)
			path := writeWAV(t, 16000, 1, tt.precision, sine, sine)

			audio, err := quietDecoder(&DecoderConfig{}).DecodeFile(path)
			if err != nil {
				t.Fatal(err)
			}
			testutil.RequireSliceNearlyEqual(t, audio.PCM[0], sine, tt.eps)

			peak := 0.0
			for _, v := range audio.PCM[0] {
				peak = math.Max(peak, math.Abs(v))
			}
			if peak < 0.85 || peak > 0.95 {
				t.Fatalf("peak = %v, want about 0.9", peak)
			}
		})
	}
}

func TestDecodeResamplesAndLimits(t *testing.T) {
	t.Parallel()

	sine := testutil.DeterministicSine(200, 32000, 0.5, 32000)
	path := writeWAV(t, 32000, 1, 2, sine, sine)

	audio, err := quietDecoder(&DecoderConfig{TargetSampleRate: 16000}).DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if audio.SampleRate != 16000 {
		t.Fatalf("rate = %d", audio.SampleRate)
	}
	if n := len(audio.PCM[0]); n < 15900 || n > 16100 {
		t.Fatalf("resampled length = %d, want ~16000", n)
	}

	short, err := quietDecoder(&DecoderConfig{MaxDuration: 250 * time.Millisecond}).DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(short.PCM[0]); n != 8000 {
		t.Fatalf("limited length = %d, want 8000", n)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	t.Parallel()

	d := quietDecoder(nil)
	if _, err := d.DecodeBytes([]byte("ID3"), "mp3"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := d.DecodeBytes([]byte("not a wav file"), "wav"); err == nil {
		t.Fatal("expected error for corrupt WAV")
	}
	if !slices.Contains(d.GetSupportedFormats(), "flac") {
		t.Fatal("flac should be supported")
	}
}

func TestFeatureArchiveFloat32(t *testing.T) {
	t.Parallel()

	x, err := tensor.FromData([]float64{0.5, -1.25, 3, 0, 1024, -0.0078125}, 1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, x, Float32); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 6+3*4+6*4 {
		t.Fatalf("archive size = %d", buf.Len())
	}

	y, prec, err := ReadFeatures(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if prec != Float32 || !slices.Equal(y.Shape, x.Shape) || !slices.Equal(y.Data, x.Data) {
		t.Fatalf("round trip = %v %v %v", prec, y.Shape, y.Data)
	}
}

func TestFeatureArchiveFloat16(t *testing.T) {
	t.Parallel()

	data := testutil.DeterministicNoise(5, 4, 200)
	x, err := tensor.FromData(data, 2, 100)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, x, Float16); err != nil {
		t.Fatal(err)
	}
	y, prec, err := ReadFeatures(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if prec != Float16 || !slices.Equal(y.Shape, x.Shape) {
		t.Fatalf("header = %v %v", prec, y.Shape)
	}
	for i, v := range y.Data {
		// half precision keeps 11 significant bits
		if math.Abs(v-x.Data[i]) > math.Abs(x.Data[i])/1024+1e-4 {
			t.Fatalf("value %d: got %v, want %v", i, v, x.Data[i])
		}
	}
}

func TestReadFeaturesRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{
		nil,
		[]byte("NOPE\x01\x01\x00\x00\x00\x00"),
		[]byte("SFEA\x09\x01\x00\x00\x00\x00"),
		[]byte("SFEA\x01\x01\x02\x00\x00\x00\x00\x00"),
	} {
		if _, _, err := ReadFeatures(bytes.NewReader(in)); !errors.Is(err, ErrBadArchive) {
			t.Errorf("ReadFeatures(%q) err = %v, want ErrBadArchive", in, err)
		}
	}
}

func TestParsePrecision(t *testing.T) {
	t.Parallel()

	if p, err := ParsePrecision("half"); err != nil || p != Float16 {
		t.Fatalf("half = %v, %v", p, err)
	}
	if p, err := ParsePrecision(""); err != nil || p != Float32 {
		t.Fatalf("default = %v, %v", p, err)
	}
	if _, err := ParsePrecision("int8"); err == nil {
		t.Fatal("expected error")
	}
}
