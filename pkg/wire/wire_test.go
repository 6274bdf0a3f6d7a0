package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
)

func sampleTask() Task {
	return Task{
		ID:            "6f1c2a9e-3c1b-4d8e-9a57-0c2d9b7e8f10",
		StartRow:      2,
		EndRow:        5,
		Width:         10,
		Height:        8,
		MinX:          math.Nextafter(-2.5, 0),
		MaxX:          1.5,
		MinY:          -1.5000000000000002,
		MaxY:          1.5,
		Zoom:          1.0 / 3.0,
		MaxIterations: 50,
	}
}

func sameBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

func TestTaskRoundTrip(t *testing.T) {
	for _, c := range []Codec{{Compress: false}, {Compress: true}} {
		task := sampleTask()
		var buf bytes.Buffer
		if err := c.WriteTask(&buf, task); err != nil {
			t.Fatalf("WriteTask(compress=%v) failed: %v", c.Compress, err)
		}
		got, gotCodec, err := ReadTask(&buf)
		if err != nil {
			t.Fatalf("ReadTask(compress=%v) failed: %v", c.Compress, err)
		}
		if gotCodec != c {
			t.Errorf("ReadTask codec = %+v, want %+v", gotCodec, c)
		}
		if got.ID != task.ID || got.StartRow != task.StartRow || got.EndRow != task.EndRow ||
			got.Width != task.Width || got.Height != task.Height || got.MaxIterations != task.MaxIterations {
			t.Errorf("integer fields differ: got %+v, want %+v", got, task)
		}
		for _, p := range [][2]float64{
			{got.MinX, task.MinX}, {got.MaxX, task.MaxX},
			{got.MinY, task.MinY}, {got.MaxY, task.MaxY},
			{got.Zoom, task.Zoom},
		} {
			if !sameBits(p[0], p[1]) {
				t.Errorf("float changed in transit: %v (%#x) vs %v (%#x)",
					p[0], math.Float64bits(p[0]), p[1], math.Float64bits(p[1]))
			}
		}
		if buf.Len() != 0 {
			t.Errorf("%d bytes left after one frame", buf.Len())
		}
	}
}

func TestResultRoundTrip(t *testing.T) {
	pixels := make([]uint32, 30)
	for i := range pixels {
		pixels[i] = 0xFF000000 | uint32(i*0x010203)
	}
	pixels[7] = 0xFFFFFFFF
	res := Result{ID: "abc", StartRow: 2, Pixels: pixels}

	for _, c := range []Codec{{}, {Compress: true}} {
		var buf bytes.Buffer
		if err := c.WriteResult(&buf, res); err != nil {
			t.Fatalf("WriteResult failed: %v", err)
		}
		got, err := ReadResult(&buf)
		if err != nil {
			t.Fatalf("ReadResult failed: %v", err)
		}
		if got.ID != res.ID || got.StartRow != res.StartRow || len(got.Pixels) != len(res.Pixels) {
			t.Fatalf("got %+v, want %+v", got, res)
		}
		for i := range pixels {
			if got.Pixels[i] != pixels[i] {
				t.Fatalf("pixel %d = %#08x, want %#08x", i, got.Pixels[i], pixels[i])
			}
		}
	}
}

func TestFramesOverStream(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	task := sampleTask()
	go func() {
		WriteTask(client, task)
		WriteTask(client, task)
	}()

	for i := 0; i < 2; i++ {
		got, _, err := ReadTask(server)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.ID != task.ID {
			t.Errorf("frame %d id = %q", i, got.ID)
		}
	}
}

func TestReadTaskMalformed(t *testing.T) {
	valid := func(mutate func(frame []byte) []byte) []byte {
		var buf bytes.Buffer
		WriteTask(&buf, sampleTask())
		return mutate(buf.Bytes())
	}
	rawFrame := func(version, kind, flags byte, payload []byte) []byte {
		frame := make([]byte, 4, 4+headerSize+len(payload))
		binary.BigEndian.PutUint32(frame, uint32(headerSize+len(payload)))
		frame = append(frame, version, kind, flags)
		return append(frame, payload...)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"text garbage", []byte("this is not a task at all\n")},
		{"length below header", []byte{0, 0, 0, 1, 1}},
		{"huge length", []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"wrong version", valid(func(f []byte) []byte { f[4] = 9; return f })},
		{"result kind", valid(func(f []byte) []byte { f[5] = kindResult; return f })},
		{"unknown flag", valid(func(f []byte) []byte { f[6] = 0x80; return f })},
		{"bad msgpack", rawFrame(Version, kindTask, 0, []byte{0xC1, 0xC1})},
		{"bad zstd", rawFrame(Version, kindTask, flagZstd, []byte("not zstd"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadTask(bytes.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedTask) {
				t.Errorf("ReadTask err = %v, want ErrMalformedTask", err)
			}
		})
	}
}

func TestReadTaskTruncated(t *testing.T) {
	var buf bytes.Buffer
	WriteTask(&buf, sampleTask())
	frame := buf.Bytes()

	if _, _, err := ReadTask(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Errorf("empty stream err = %v, want io.EOF", err)
	}
	if _, _, err := ReadTask(bytes.NewReader(frame[:2])); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short length err = %v, want io.ErrUnexpectedEOF", err)
	}
	if _, _, err := ReadTask(bytes.NewReader(frame[:len(frame)-3])); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short body err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestPayloadIsTaggedMsgpack(t *testing.T) {
	var buf bytes.Buffer
	WriteTask(&buf, sampleTask())

	var fields map[string]interface{}
	if err := msgpack.Unmarshal(buf.Bytes()[4+headerSize:], &fields); err != nil {
		t.Fatalf("payload is not msgpack: %v", err)
	}
	for _, key := range []string{"id", "start_row", "end_row", "width", "height",
		"min_x", "max_x", "min_y", "max_y", "zoom", "max_iterations"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("payload lacks field %q", key)
		}
	}
}

func TestTaskValidate(t *testing.T) {
	if err := sampleTask().Validate(); err != nil {
		t.Fatalf("sample task invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"empty range", func(t *Task) { t.EndRow = t.StartRow }},
		{"negative start", func(t *Task) { t.StartRow = -1 }},
		{"end past height", func(t *Task) { t.EndRow = t.Height + 1 }},
		{"zero width", func(t *Task) { t.Width = 0 }},
		{"zero zoom", func(t *Task) { t.Zoom = 0 }},
		{"missing bounds", func(t *Task) { t.MinX, t.MaxX = 0, 0 }},
		{"zero iterations", func(t *Task) { t.MaxIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := sampleTask()
			tt.mutate(&task)
			if err := task.Validate(); !errors.Is(err, ErrMalformedTask) {
				t.Errorf("Validate() = %v, want ErrMalformedTask", err)
			}
		})
	}
}

func TestResultCheck(t *testing.T) {
	task := sampleTask()
	if task.Pixels() != 30 {
		t.Fatalf("task needs %d pixels, want 30", task.Pixels())
	}

	good := Result{ID: task.ID, StartRow: 2, Pixels: make([]uint32, 30)}
	if err := good.Check(task); err != nil {
		t.Fatalf("Check(good) = %v", err)
	}

	bad := []Result{
		{ID: task.ID, StartRow: 2, Pixels: make([]uint32, 29)},
		{ID: task.ID, StartRow: 2, Pixels: make([]uint32, 31)},
		{ID: task.ID, StartRow: 3, Pixels: make([]uint32, 30)},
		{ID: "other", StartRow: 2, Pixels: make([]uint32, 30)},
	}
	for i, res := range bad {
		if err := res.Check(task); !errors.Is(err, ErrMalformedTask) {
			t.Errorf("case %d: Check = %v, want ErrMalformedTask", i, err)
		}
	}
}

func TestNewTaskCopiesViewport(t *testing.T) {
	v := fractal.DefaultViewport()
	task := NewTask("id", partition.Span(100, 200), v)
	if task.Viewport() != v {
		t.Errorf("Viewport() = %+v, want %+v", task.Viewport(), v)
	}
	if task.Rows() != 100 || task.StartRow != 100 || task.EndRow != 200 {
		t.Errorf("rows = [%d, %d)", task.StartRow, task.EndRow)
	}
}

func TestTaskValidateBandSize(t *testing.T) {
	big := sampleTask()
	big.Width, big.Height = 4096, 4096
	big.StartRow, big.EndRow = 0, 4096
	err := big.Validate()
	if !errors.Is(err, ErrBandTooLarge) || !errors.Is(err, ErrMalformedTask) {
		t.Fatalf("Validate(4096x4096) = %v, want ErrBandTooLarge", err)
	}

	// half the rows fit
	big.EndRow = 2048
	if err := big.Validate(); err != nil {
		t.Errorf("Validate(4096x2048) = %v", err)
	}

	limit := MaxBandPixels(len(big.ID))
	edge := sampleTask()
	edge.Width, edge.Height = 1, limit+1
	edge.StartRow, edge.EndRow = 0, limit
	if err := edge.Validate(); err != nil {
		t.Errorf("band of exactly %d pixels rejected: %v", limit, err)
	}
	edge.EndRow = limit + 1
	if err := edge.Validate(); !errors.Is(err, ErrBandTooLarge) {
		t.Errorf("band of %d pixels: Validate = %v, want ErrBandTooLarge", limit+1, err)
	}

	wide := sampleTask()
	wide.Width = math.MaxInt/2 + 1
	if err := wide.Validate(); !errors.Is(err, ErrBandTooLarge) {
		t.Errorf("overflowing band: Validate = %v, want ErrBandTooLarge", err)
	}
}

func TestResultFrameWithinBound(t *testing.T) {
	task := sampleTask()
	res := Result{ID: task.ID, StartRow: task.StartRow, Pixels: make([]uint32, task.Pixels())}
	for i := range res.Pixels {
		res.Pixels[i] = 0xFFFFFFFF
	}

	var buf bytes.Buffer
	if err := WriteResult(&buf, res); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	body := buf.Len() - lengthSize
	if bound := headerSize + resultOverhead + len(task.ID) + pixelBytes*task.Pixels(); body > bound {
		t.Errorf("result body is %d bytes, bound is %d", body, bound)
	}
}

func TestWriteOversizedFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates more than MaxFrameSize")
	}
	res := Result{ID: "big", Pixels: make([]uint32, MaxFrameSize/pixelBytes+1)}
	for i := range res.Pixels {
		res.Pixels[i] = 0xFF000000
	}
	var w countingWriter
	if err := WriteResult(&w, res); err == nil {
		t.Fatal("WriteResult accepted a frame larger than MaxFrameSize")
	}
	if w.n != 0 {
		t.Errorf("%d bytes written for a rejected frame", w.n)
	}
}

type countingWriter struct{ n int }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
