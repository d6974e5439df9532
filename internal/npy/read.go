package npy

import (
	"fmt"
	"io"

	"github.com/reacture/engine/pkg/core"
	"github.com/sbinet/npyio"
)

// ReadFrames decodes an array written by WriteFrames. Timestamps are not part
// of the array; see ReadFloat32.
func ReadFrames(r io.Reader) ([]core.FrameRecord, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy: reading header: %w", err)
	}
	descr := nr.Header.Descr
	if descr.Type != string(Uint8) || descr.Fortran {
		return nil, fmt.Errorf("npy: frames must be C-ordered %s, got %s", Uint8, descr.Type)
	}
	if len(descr.Shape) != 4 || descr.Shape[3] != 3 {
		return nil, fmt.Errorf("npy: frames must have shape (N, H, W, 3), got %s", FormatShape(descr.Shape))
	}

	var data []uint8
	if err := nr.Read(&data); err != nil {
		return nil, fmt.Errorf("npy: reading frames: %w", err)
	}
	n, h, w := descr.Shape[0], descr.Shape[1], descr.Shape[2]
	size := h * w * 3
	if len(data) != n*size {
		return nil, fmt.Errorf("npy: expected %d bytes of frame data, got %d", n*size, len(data))
	}

	frames := make([]core.FrameRecord, n)
	for i := range frames {
		frames[i] = core.FrameRecord{
			Index:  i,
			Width:  w,
			Height: h,
			Pixels: data[i*size : (i+1)*size],
		}
	}
	return frames, nil
}

// ReadFloat32 decodes a one-dimensional float32 array.
func ReadFloat32(r io.Reader) ([]float32, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy: reading header: %w", err)
	}
	if t := nr.Header.Descr.Type; t != string(Float32) {
		return nil, fmt.Errorf("npy: expected %s, got %s", Float32, t)
	}
	if len(nr.Header.Descr.Shape) != 1 {
		return nil, fmt.Errorf("npy: expected a vector, got shape %s", FormatShape(nr.Header.Descr.Shape))
	}
	var values []float32
	if err := nr.Read(&values); err != nil {
		return nil, fmt.Errorf("npy: reading values: %w", err)
	}
	return values, nil
}
