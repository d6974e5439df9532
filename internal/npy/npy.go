// Package npy writes arrays in the NumPy .npy format, version 1.0.
//
// Layout: the magic "\x93NUMPY", major and minor version bytes, a
// little-endian uint16 header length, then an ASCII dict literal describing
// dtype, memory order and shape. The dict is padded with spaces and ends in
// '\n' so that the data starts on a 64-byte boundary. Data follows in C order.
package npy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/reacture/engine/pkg/core"
)

const (
	Magic        = "\x93NUMPY"
	MajorVersion = 1
	MinorVersion = 0
	Alignment    = 64

	// magic + version + header length field
	prefixLen = len(Magic) + 2 + 2
)

// DType is a NumPy array-protocol type string.
type DType string

const (
	Uint8   DType = "|u1"
	Float32 DType = "<f4"
)

// ErrNoFrames is returned instead of writing an empty array. It is not fatal:
// callers skip the file.
var ErrNoFrames = errors.New("npy: nothing to write")

// ErrHeaderTooLong is returned when a header does not fit the v1.0 length field.
var ErrHeaderTooLong = errors.New("npy: header exceeds 65535 bytes")

// FormatShape renders a shape the way Python prints a tuple.
func FormatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	if len(shape) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Padding is the number of spaces needed after a dict of dictLen bytes so
// that the preamble, including the closing newline, is a multiple of Alignment.
func Padding(dictLen int) int {
	return (Alignment - (prefixLen+dictLen+1)%Alignment) % Alignment
}

// Header returns the padded header text for an array of the given dtype and shape.
func Header(dtype DType, shape []int) string {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dtype, FormatShape(shape))
	return dict + strings.Repeat(" ", Padding(len(dict))) + "\n"
}

// WritePreamble writes magic, version, header length and header.
func WritePreamble(w io.Writer, dtype DType, shape []int) (int, error) {
	header := Header(dtype, shape)
	if len(header) > math.MaxUint16 {
		return 0, ErrHeaderTooLong
	}
	buf := make([]byte, 0, prefixLen+len(header))
	buf = append(buf, Magic...)
	buf = append(buf, MajorVersion, MinorVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	return w.Write(buf)
}

// WriteFrames writes frames as one uint8 array of shape (N, H, W, 3). Every
// frame must have the dimensions of the first.
func WriteFrames(w io.Writer, frames []core.FrameRecord) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	h, wd := frames[0].Height, frames[0].Width
	size := h * wd * 3
	for _, f := range frames {
		if f.Height != h || f.Width != wd || len(f.Pixels) != size {
			return fmt.Errorf("npy: frame %d is %dx%d with %d bytes, want %dx%d with %d", f.Index, f.Width, f.Height, len(f.Pixels), wd, h, size)
		}
	}

	bw := bufio.NewWriter(w)
	if _, err := WritePreamble(bw, Uint8, []int{len(frames), h, wd, 3}); err != nil {
		return err
	}
	for _, f := range frames {
		if _, err := bw.Write(f.Pixels); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFloat32 writes values as a little-endian float32 array of shape (N,).
func WriteFloat32(w io.Writer, values []float32) error {
	if len(values) == 0 {
		return ErrNoFrames
	}
	bw := bufio.NewWriter(w)
	if _, err := WritePreamble(bw, Float32, []int{len(values)}); err != nil {
		return err
	}
	var b [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTimestamps writes the capture time of each frame, in milliseconds
// since session start, as float32.
func WriteTimestamps(w io.Writer, frames []core.FrameRecord) error {
	ts := make([]float32, len(frames))
	for i, f := range frames {
		ts[i] = float32(f.TimestampMS)
	}
	return WriteFloat32(w, ts)
}
