// Package wire carries Tasks to workers and Results back.
//
// Every record travels as one frame:
//
//	uint32 big-endian length L | L bytes of body
//	body = version (1) | kind (1 task, 2 result) | flags (bit 0: zstd) | payload
//
// The payload is the msgpack encoding of the record, zstd-compressed when
// flag bit 0 is set. Pixel arrays carry their own length, so a receiver
// needs no outside context to decode a Result.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	Version byte = 1

	kindTask   byte = 1
	kindResult byte = 2

	flagZstd  byte = 1 << 0
	knownFlag      = flagZstd

	lengthSize = 4
	headerSize = 3

	// MaxFrameSize bounds the body of one frame, before and after decompression.
	MaxFrameSize = 64 << 20
)

// Codec writes frames. Compress selects zstd payloads; readers accept both.
type Codec struct {
	Compress bool
}

func (c Codec) WriteTask(w io.Writer, t Task) error {
	return c.writeFrame(w, kindTask, &t)
}

func (c Codec) WriteResult(w io.Writer, r Result) error {
	return c.writeFrame(w, kindResult, &r)
}

// WriteTask writes an uncompressed task frame.
func WriteTask(w io.Writer, t Task) error {
	return Codec{}.WriteTask(w, t)
}

// WriteResult writes an uncompressed result frame.
func WriteResult(w io.Writer, r Result) error {
	return Codec{}.WriteResult(w, r)
}

// ReadTask reads one task frame. The returned Codec matches the frame, so
// a reply written with it uses the same compression as the request.
func ReadTask(r io.Reader) (Task, Codec, error) {
	var t Task
	c, err := readFrame(r, kindTask, &t)
	return t, c, err
}

// ReadResult reads one result frame.
func ReadResult(r io.Reader) (Result, error) {
	var res Result
	_, err := readFrame(r, kindResult, &res)
	return res, err
}

func (c Codec) writeFrame(w io.Writer, kind byte, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack %s: %w", kindName(kind), err)
	}

	var flags byte
	if c.Compress {
		payload = compress(payload)
		flags |= flagZstd
	}
	if len(payload)+headerSize > MaxFrameSize {
		return fmt.Errorf("%s frame of %d bytes exceeds %d", kindName(kind), len(payload)+headerSize, MaxFrameSize)
	}

	// one Write per frame: length prefix, header, payload
	frame := make([]byte, lengthSize+headerSize, lengthSize+headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(headerSize+len(payload)))
	frame[lengthSize] = Version
	frame[lengthSize+1] = kind
	frame[lengthSize+2] = flags
	frame = append(frame, payload...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", kindName(kind), err)
	}
	return nil
}

func readFrame(r io.Reader, kind byte, v interface{}) (Codec, error) {
	lengthBuf := make([]byte, lengthSize)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return Codec{}, fmt.Errorf("failed to read %s frame length: %w", kindName(kind), err)
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	if length < headerSize || length > MaxFrameSize {
		return Codec{}, fmt.Errorf("%w: frame length %d", ErrMalformedTask, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Codec{}, fmt.Errorf("failed to read %s frame body: %w", kindName(kind), err)
	}

	version, gotKind, flags := body[0], body[1], body[2]
	switch {
	case version != Version:
		return Codec{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedTask, version)
	case gotKind != kind:
		return Codec{}, fmt.Errorf("%w: got %s frame, want %s", ErrMalformedTask, kindName(gotKind), kindName(kind))
	case flags&^knownFlag != 0:
		return Codec{}, fmt.Errorf("%w: unknown flags %#02x", ErrMalformedTask, flags)
	}

	c := Codec{Compress: flags&flagZstd != 0}
	payload := body[headerSize:]
	if c.Compress {
		var err error
		if payload, err = decompress(payload); err != nil {
			return c, fmt.Errorf("%w: zstd decode: %v", ErrMalformedTask, err)
		}
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return c, fmt.Errorf("%w: failed to unmarshal msgpack %s: %v", ErrMalformedTask, kindName(kind), err)
	}
	return c, nil
}

func kindName(kind byte) string {
	switch kind {
	case kindTask:
		return "task"
	case kindResult:
		return "result"
	}
	return fmt.Sprintf("kind %d", kind)
}

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxFrameSize),
		)
		return dec
	},
}

func compress(data []byte) []byte {
	enc := zstdEncPool.Get().(*zstd.Encoder)
	defer zstdEncPool.Put(enc)
	return enc.EncodeAll(data, nil)
}

func decompress(data []byte) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	return dec.DecodeAll(data, nil)
}
