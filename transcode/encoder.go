package transcode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"

	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// Precision selects the on-disk sample type of a feature archive.
type Precision uint8

const (
	Float32 Precision = 1
	Float16 Precision = 2
)

func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return fmt.Sprintf("Precision(%d)", uint8(p))
	}
}

// ParsePrecision maps "float32"/"f32" and "float16"/"f16"/"half".
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "float32", "f32", "":
		return Float32, nil
	case "float16", "f16", "half":
		return Float16, nil
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

// archiveMagic opens every feature archive.
var archiveMagic = [4]byte{'S', 'F', 'E', 'A'}

// ErrBadArchive is returned when an archive header cannot be parsed.
var ErrBadArchive = errors.New("malformed feature archive")

// maxArchiveRank bounds the header so a corrupt file cannot request a huge
// allocation.
const maxArchiveRank = 8

// WriteFeatures writes t as: magic, precision byte, rank byte, rank
// little-endian uint32 dims, then the values in row-major order.
func WriteFeatures(w io.Writer, t *tensor.Tensor, prec Precision) error {
	if prec != Float32 && prec != Float16 {
		return fmt.Errorf("unknown precision %v", prec)
	}
	if t.Rank() > maxArchiveRank {
		return fmt.Errorf("rank %d exceeds archive limit %d", t.Rank(), maxArchiveRank)
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, 0, 6+4*t.Rank())
	header = append(header, archiveMagic[:]...)
	header = append(header, byte(prec), byte(t.Rank()))
	for _, d := range t.Shape {
		header = binary.LittleEndian.AppendUint32(header, uint32(d))
	}
	if _, err := bw.Write(header); err != nil {
		return err
	}

	var scratch [4]byte
	for _, v := range t.Data {
		switch prec {
		case Float32:
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(v)))
			if _, err := bw.Write(scratch[:4]); err != nil {
				return err
			}
		case Float16:
			binary.LittleEndian.PutUint16(scratch[:], float16.Fromfloat32(float32(v)).Bits())
			if _, err := bw.Write(scratch[:2]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadFeatures reads an archive written by WriteFeatures.
func ReadFeatures(r io.Reader) (*tensor.Tensor, Precision, error) {
	br := bufio.NewReader(r)

	var head [6]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	if [4]byte(head[:4]) != archiveMagic {
		return nil, 0, fmt.Errorf("%w: bad magic %q", ErrBadArchive, head[:4])
	}
	prec := Precision(head[4])
	if prec != Float32 && prec != Float16 {
		return nil, 0, fmt.Errorf("%w: unknown precision %d", ErrBadArchive, head[4])
	}
	rank := int(head[5])
	if rank > maxArchiveRank {
		return nil, 0, fmt.Errorf("%w: rank %d", ErrBadArchive, rank)
	}

	dims := make([]byte, 4*rank)
	if _, err := io.ReadFull(br, dims); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(dims[4*i:]))
	}

	t := tensor.New(shape...)
	width := 4
	if prec == Float16 {
		width = 2
	}
	var scratch [4]byte
	for i := range t.Data {
		if _, err := io.ReadFull(br, scratch[:width]); err != nil {
			return nil, 0, fmt.Errorf("%w: value %d: %w", ErrBadArchive, i, err)
		}
		if prec == Float16 {
			t.Data[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(scratch[:2])).Float32())
		} else {
			t.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(scratch[:4])))
		}
	}
	return t, prec, nil
}
