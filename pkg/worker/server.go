// Package worker serves row bands to coordinators over TCP.
//
// A Server handles exactly one connection at a time: accept, read one Task,
// compute its rows, write one Result, close. A second client waits in the
// listener's accept queue meanwhile. Failures are logged per connection and
// never stop the loop; the only way to stop a Server is to close its
// listener (or end the process). No timeouts are set on accept, read or
// write, so a stalled client holds the single serving slot.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joshvictor1024/mandelfarm/pkg/engine"
	"github.com/joshvictor1024/mandelfarm/pkg/wire"
)

// ErrComputation marks a fault while computing a task's rows.
var ErrComputation = errors.New("computation failed")

const acceptRetryDelay = 50 * time.Millisecond

type Server struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ListenAndServe binds addr and serves until the listener fails. A bind
// failure is returned immediately.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer l.Close()
	return s.Serve(l)
}

// Serve runs the accept loop on l. It returns nil once l is closed.
func (s *Server) Serve(l net.Listener) error {
	log := s.logger()
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		log.Info(fmt.Sprintf("Worker ready on port %d", tcp.Port), "addr", tcp.String())
	} else {
		log.Info("Worker ready", "addr", l.Addr().String())
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("worker listener closed", "addr", l.Addr().String())
				return nil
			}
			log.Error("accept failed", "error", err)
			// don't spin on a listener that keeps failing
			time.Sleep(acceptRetryDelay)
			continue
		}

		if err := s.handle(conn); err != nil {
			log.Error("error processing task",
				"remote", conn.RemoteAddr().String(),
				"error", err,
			)
		}
	}
}

// handle serves one connection and always closes it.
func (s *Server) handle(conn net.Conn) error {
	defer conn.Close()
	log := s.logger()

	task, codec, err := wire.ReadTask(conn)
	if err != nil {
		return err
	}
	if err := task.Validate(); err != nil {
		return err
	}
	log.Info("received task",
		"id", task.ID,
		"start_row", task.StartRow,
		"end_row", task.EndRow,
	)

	start := time.Now()
	result, err := Compute(task)
	if err != nil {
		return err
	}

	// reply with the compression the request arrived with
	if err := codec.WriteResult(conn, result); err != nil {
		return err
	}

	log.Info("sent result",
		"id", task.ID,
		"start_row", task.StartRow,
		"end_row", task.EndRow,
		"elapsed", time.Since(start),
	)
	return nil
}

// Compute renders the task's rows on the calling goroutine. A panic inside
// the row loop is turned into ErrComputation.
func Compute(task wire.Task) (result wire.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: task %s rows [%d, %d): %v", ErrComputation, task.ID, task.StartRow, task.EndRow, r)
		}
	}()

	pixels := make([]uint32, task.Pixels())
	if err := engine.RenderRows(task.Viewport(), task.StartRow, task.EndRow, pixels); err != nil {
		return wire.Result{}, fmt.Errorf("%w: %v", ErrComputation, err)
	}
	return wire.Result{ID: task.ID, StartRow: task.StartRow, Pixels: pixels}, nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
