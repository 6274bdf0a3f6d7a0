// Package partition splits the rows of an image between compute units.
//
// Every policy assigns each row of [0, height) to exactly one unit. When
// there are more units than rows, the unit count is reduced to the row
// count so that no unit is handed an empty share.
package partition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPartition is returned for non-positive heights or unit counts.
var ErrInvalidPartition = errors.New("invalid partition")

type Policy int

const (
	// PolicyBlock gives unit i one contiguous span; the last unit takes the remainder.
	PolicyBlock Policy = iota
	// PolicyStriped gives unit i rows i, i+n, i+2n, ...
	PolicyStriped
)

func (p Policy) String() string {
	switch p {
	case PolicyBlock:
		return "block"
	case PolicyStriped:
		return "striped"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "block" or "striped".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "":
		return PolicyBlock, nil
	case "striped":
		return PolicyStriped, nil
	}
	return 0, fmt.Errorf("unknown partition policy %q", s)
}

// Rows is the share of one unit: Start, Start+Stride, ... below End.
// A block span has Stride 1.
type Rows struct {
	Start  int
	End    int
	Stride int
}

// Span returns the contiguous half-open span [start, end).
func Span(start, end int) Rows {
	return Rows{Start: start, End: end, Stride: 1}
}

func (r Rows) Contiguous() bool {
	return r.Stride == 1
}

func (r Rows) Count() int {
	if r.End <= r.Start || r.Stride <= 0 {
		return 0
	}
	return (r.End - r.Start + r.Stride - 1) / r.Stride
}

// Each calls fn for every owned row in increasing order.
func (r Rows) Each(fn func(row int)) {
	if r.Stride <= 0 {
		return
	}
	for row := r.Start; row < r.End; row += r.Stride {
		fn(row)
	}
}

func (r Rows) String() string {
	if r.Contiguous() {
		return fmt.Sprintf("[%d, %d)", r.Start, r.End)
	}
	return fmt.Sprintf("[%d, %d) step %d", r.Start, r.End, r.Stride)
}

// Partition splits [0, height) between n units with the given policy.
func Partition(policy Policy, height, n int) ([]Rows, error) {
	switch policy {
	case PolicyBlock:
		return Block(height, n)
	case PolicyStriped:
		return Striped(height, n)
	}
	return nil, fmt.Errorf("%w: unknown policy %v", ErrInvalidPartition, policy)
}

// Block assigns [i*c, (i+1)*c) with c = height/n to unit i and extends the
// last span to height.
func Block(height, n int) ([]Rows, error) {
	n, err := units(height, n)
	if err != nil {
		return nil, err
	}
	chunk := height / n
	spans := make([]Rows, 0, n)
	for i := 0; i < n; i += 1 {
		end := (i + 1) * chunk
		if i == n-1 {
			end = height
		}
		spans = append(spans, Span(i*chunk, end))
	}
	return spans, nil
}

// Striped assigns rows i, i+n, i+2n, ... to unit i.
func Striped(height, n int) ([]Rows, error) {
	n, err := units(height, n)
	if err != nil {
		return nil, err
	}
	stripes := make([]Rows, 0, n)
	for i := 0; i < n; i += 1 {
		stripes = append(stripes, Rows{Start: i, End: height, Stride: n})
	}
	return stripes, nil
}

func units(height, n int) (int, error) {
	if height <= 0 {
		return 0, fmt.Errorf("%w: height %d", ErrInvalidPartition, height)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d units", ErrInvalidPartition, n)
	}
	if n > height {
		n = height
	}
	return n, nil
}
