package engine

import (
	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
)

// bandWork is what one execution unit computes: the rows it owns, written
// straight into the shared destination. No two bandWorks share a row.
type bandWork struct {
	viewport fractal.Viewport
	rows     partition.Rows
	// dst holds whole rows; row r lives at (r-origin)*Width
	dst    []uint32
	origin int
}

func iterateBand(bw *bandWork) {
	v := bw.viewport
	bw.rows.Each(func(row int) {
		line := bw.dst[(row-bw.origin)*v.Width : (row-bw.origin+1)*v.Width]
		iterateRow(v, row, line)
	})
}

func iterateRow(v fractal.Viewport, row int, line []uint32) {
	for xi := 0; xi < v.Width; xi += 1 {
		x0, y0 := v.Point(xi, row)
		count, _ := fractal.Escape(x0, y0, v.MaxIterations)
		line[xi] = fractal.Color(count, v.MaxIterations)
	}
}
