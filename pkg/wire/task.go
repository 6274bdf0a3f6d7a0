package wire

import (
	"errors"
	"fmt"

	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
)

// ErrMalformedTask marks a frame, Task or Result that cannot be used:
// undecodable bytes, missing or out-of-range fields, or a Result that does
// not fit the Task it answers.
var ErrMalformedTask = errors.New("malformed task")

// ErrBandTooLarge marks a Task whose Result could not fit in one frame.
var ErrBandTooLarge = fmt.Errorf("%w: band too large for one result frame", ErrMalformedTask)

const (
	// msgpack size of an opaque pixel: 0xce + 4 bytes
	pixelBytes = 5
	// map header, keys, start_row and the pixel array header
	resultOverhead = 64
)

// MaxBandPixels is the largest Pixels() a Task with an id of idLen bytes
// may ask for.
func MaxBandPixels(idLen int) int {
	budget := MaxFrameSize - headerSize - resultOverhead - idLen
	if budget <= 0 {
		return 0
	}
	return budget / pixelBytes
}

// Task is one contiguous band of rows plus everything needed to compute it.
// A worker needs no other context.
type Task struct {
	ID            string  `msgpack:"id"`
	StartRow      int     `msgpack:"start_row"`
	EndRow        int     `msgpack:"end_row"`
	Width         int     `msgpack:"width"`
	Height        int     `msgpack:"height"`
	MinX          float64 `msgpack:"min_x"`
	MaxX          float64 `msgpack:"max_x"`
	MinY          float64 `msgpack:"min_y"`
	MaxY          float64 `msgpack:"max_y"`
	Zoom          float64 `msgpack:"zoom"`
	MaxIterations int     `msgpack:"max_iterations"`
}

// Result answers a Task: StartRow echoes the task and keys reassembly,
// Pixels holds (EndRow-StartRow)*Width ARGB values in row-major order.
type Result struct {
	ID       string   `msgpack:"id"`
	StartRow int      `msgpack:"start_row"`
	Pixels   []uint32 `msgpack:"pixels"`
}

// NewTask copies v into a Task for the contiguous span.
func NewTask(id string, span partition.Rows, v fractal.Viewport) Task {
	return Task{
		ID:            id,
		StartRow:      span.Start,
		EndRow:        span.End,
		Width:         v.Width,
		Height:        v.Height,
		MinX:          v.MinX,
		MaxX:          v.MaxX,
		MinY:          v.MinY,
		MaxY:          v.MaxY,
		Zoom:          v.Zoom,
		MaxIterations: v.MaxIterations,
	}
}

func (t Task) Viewport() fractal.Viewport {
	return fractal.Viewport{
		MinX:          t.MinX,
		MaxX:          t.MaxX,
		MinY:          t.MinY,
		MaxY:          t.MaxY,
		Zoom:          t.Zoom,
		Width:         t.Width,
		Height:        t.Height,
		MaxIterations: t.MaxIterations,
	}
}

// Rows is the number of rows in the band.
func (t Task) Rows() int {
	return t.EndRow - t.StartRow
}

// Pixels is the length a matching Result must have.
func (t Task) Pixels() int {
	return t.Rows() * t.Width
}

func (t Task) Validate() error {
	if err := t.Viewport().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if t.StartRow < 0 || t.EndRow <= t.StartRow || t.EndRow > t.Height {
		return fmt.Errorf("%w: rows [%d, %d) outside height %d", ErrMalformedTask, t.StartRow, t.EndRow, t.Height)
	}
	// Rows()*Width may overflow, so divide instead
	if limit := MaxBandPixels(len(t.ID)); t.Rows() > limit/t.Width {
		return fmt.Errorf("%w: rows [%d, %d) of width %d exceed %d pixels",
			ErrBandTooLarge, t.StartRow, t.EndRow, t.Width, limit)
	}
	return nil
}

// Check verifies that r answers t.
func (r Result) Check(t Task) error {
	if r.ID != t.ID {
		return fmt.Errorf("%w: result id %q for task %q", ErrMalformedTask, r.ID, t.ID)
	}
	if r.StartRow != t.StartRow {
		return fmt.Errorf("%w: result starts at row %d, task at %d", ErrMalformedTask, r.StartRow, t.StartRow)
	}
	if len(r.Pixels) != t.Pixels() {
		return fmt.Errorf("%w: result holds %d pixels, task needs %d", ErrMalformedTask, len(r.Pixels), t.Pixels())
	}
	return nil
}
