// Package coordinator renders a viewport on remote workers.
//
// The image is block-partitioned into one contiguous Task per worker
// address. Each Task travels on its own connection; the returned bands are
// written into one PixelBuffer at their StartRow by a single assembler.
// There is no retry: the first failing worker fails the render and cancels
// the other dispatches. Deadlines come from the caller's context and the
// optional DialTimeout.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
	"github.com/joshvictor1024/mandelfarm/pkg/wire"
)

// ErrNoWorkers is returned when Render or Plan gets no worker addresses.
var ErrNoWorkers = errors.New("no worker addresses")

type Coordinator struct {
	// Codec selects compression for outgoing tasks.
	Codec wire.Codec
	// DialTimeout bounds each connection attempt; zero means no limit
	// beyond the context.
	DialTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Plan validates v and splits it into n contiguous tasks covering every row
// exactly once. With more workers than rows only Height tasks are made.
func (c *Coordinator) Plan(v fractal.Viewport, n int) ([]wire.Task, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrNoWorkers
	}
	spans, err := partition.Block(v.Height, n)
	if err != nil {
		return nil, err
	}
	tasks := make([]wire.Task, 0, len(spans))
	for _, span := range spans {
		task := wire.NewTask(uuid.NewString(), span, v)
		if err := task.Validate(); err != nil {
			if errors.Is(err, wire.ErrBandTooLarge) {
				return nil, fmt.Errorf("%w; use more workers", err)
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Dispatch sends task to the worker at addr over a fresh connection and
// returns its checked Result. Cancelling ctx aborts the exchange.
func (c *Coordinator) Dispatch(ctx context.Context, addr string, task wire.Task) (wire.Result, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return wire.Result{}, fmt.Errorf("failed to connect to worker: %w", err)
	}
	defer conn.Close()

	// unblock reads and writes when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.logger().Debug("dispatching task",
		"worker", addr,
		"id", task.ID,
		"start_row", task.StartRow,
		"end_row", task.EndRow,
	)

	if err := c.Codec.WriteTask(conn, task); err != nil {
		return wire.Result{}, contextError(ctx, err)
	}
	result, err := wire.ReadResult(conn)
	if err != nil {
		return wire.Result{}, contextError(ctx, err)
	}
	if err := result.Check(task); err != nil {
		return wire.Result{}, err
	}
	return result, nil
}

// Assemble writes a checked result into buf at result.StartRow.
func Assemble(buf *fractal.PixelBuffer, task wire.Task, result wire.Result) error {
	if err := result.Check(task); err != nil {
		return err
	}
	if buf.Width != task.Width || buf.Height != task.Height {
		return fmt.Errorf("%w: task for %dx%d image, buffer is %dx%d",
			wire.ErrMalformedTask, task.Width, task.Height, buf.Width, buf.Height)
	}
	return buf.SetRows(result.StartRow, result.Pixels)
}

// Render computes v on the workers at addrs, task i going to addrs[i].
func (c *Coordinator) Render(ctx context.Context, v fractal.Viewport, addrs []string) (*fractal.PixelBuffer, error) {
	tasks, err := c.Plan(v, len(addrs))
	if err != nil {
		return nil, err
	}
	log := c.logger()
	buf := fractal.NewPixelBuffer(v.Width, v.Height)
	rq := newResultQueue()

	assembled := make(chan error, 1)
	go func() {
		assembled <- c.assemble(buf, rq, len(tasks))
	}()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		addr, task := addrs[i], task
		g.Go(func() error {
			result, err := c.Dispatch(gctx, addr, task)
			if err != nil {
				log.Error("worker failed",
					"worker", addr,
					"id", task.ID,
					"start_row", task.StartRow,
					"end_row", task.EndRow,
					"error", err,
				)
				return fmt.Errorf("worker %s rows [%d, %d): %w", addr, task.StartRow, task.EndRow, err)
			}
			rq.send(&delivery{addr: addr, task: task, result: result})
			return nil
		})
	}
	dispatchErr := g.Wait()
	rq.close()
	assembleErr := <-assembled

	if dispatchErr != nil {
		return nil, dispatchErr
	}
	if assembleErr != nil {
		return nil, assembleErr
	}
	log.Info("distributed render complete",
		"workers", len(tasks),
		"width", v.Width,
		"height", v.Height,
		"elapsed", time.Since(start),
	)
	return buf, nil
}

// assemble drains rq into buf. It keeps draining after an error so that
// no dispatcher is left holding a band.
func (c *Coordinator) assemble(buf *fractal.PixelBuffer, rq *resultQueue, want int) error {
	var firstErr error
	got := 0
	for {
		d, ok := rq.recv()
		if !ok {
			break
		}
		if err := Assemble(buf, d.task, d.result); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %s: %w", d.addr, err)
			}
			continue
		}
		got += 1
		c.logger().Debug("band assembled",
			"worker", d.addr,
			"id", d.task.ID,
			"start_row", d.result.StartRow,
			"rows", d.task.Rows(),
		)
	}
	if firstErr == nil && got != want {
		firstErr = fmt.Errorf("assembled %d of %d bands", got, want)
	}
	return firstErr
}

func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
