// Package engine renders a viewport inside one process.
//
// Render fans the rows out to goroutines that all write into one shared
// PixelBuffer. Shares never overlap, so the WaitGroup join is the only
// synchronisation. A render cannot be cancelled once started; callers that
// need responsiveness drop stale buffers instead.
package engine

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
)

// Render computes the whole viewport with units goroutines. units <= 0
// means one per CPU. The result does not depend on units or policy.
func Render(v fractal.Viewport, units int, policy partition.Policy) (*fractal.PixelBuffer, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	shares, err := partition.Partition(policy, v.Height, Units(units, v.Height))
	if err != nil {
		return nil, err
	}

	buf := fractal.NewPixelBuffer(v.Width, v.Height)

	wg := new(sync.WaitGroup)
	wg.Add(len(shares))
	for _, rows := range shares {
		go func(bw *bandWork) {
			defer wg.Done()
			iterateBand(bw)
		}(&bandWork{viewport: v, rows: rows, dst: buf.Pix})
	}
	wg.Wait()

	return buf, nil
}

// Units is the number of goroutines Render starts for a request of units
// on an image of height rows.
func Units(units, height int) int {
	if units <= 0 {
		units = runtime.NumCPU()
	}
	if units > height {
		units = height
	}
	return units
}

// RenderSequential computes the viewport on the calling goroutine.
func RenderSequential(v fractal.Viewport) (*fractal.PixelBuffer, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	buf := fractal.NewPixelBuffer(v.Width, v.Height)
	iterateBand(&bandWork{viewport: v, rows: partition.Span(0, v.Height), dst: buf.Pix})
	return buf, nil
}

// RenderRows computes rows [start, end) of v into dst on the calling
// goroutine. dst must hold exactly (end-start)*v.Width pixels.
func RenderRows(v fractal.Viewport, start, end int, dst []uint32) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if start < 0 || end <= start || end > v.Height {
		return fmt.Errorf("rows [%d, %d) outside image height %d", start, end, v.Height)
	}
	if want := (end - start) * v.Width; len(dst) != want {
		return fmt.Errorf("destination holds %d pixels, rows need %d", len(dst), want)
	}
	iterateBand(&bandWork{viewport: v, rows: partition.Span(start, end), dst: dst, origin: start})
	return nil
}
