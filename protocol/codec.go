// Package protocol implements the LSP base protocol framing: a header block
// terminated by an empty line, where Content-Length announces the exact byte
// length of the UTF-8 JSON body that follows. Additional headers are
// permitted and ignored; each frame carries exactly one JSON body.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"roslyn-wrapper/logger"
)

const contentLengthHeader = "Content-Length:"

// Reader decodes framed messages from a byte stream.
//
// Malformed frames are contained here and never escape to the caller: a
// missing or non-numeric Content-Length means there is no body to read, and a
// body that is not valid JSON is logged and dropped. In both cases Read moves
// on to the next frame.
type Reader struct {
	br *bufio.Reader
	lg *logger.Logger
}

// NewReader wraps r. A nil logger disables codec diagnostics.
func NewReader(r io.Reader, lg *logger.Logger) *Reader {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), lg: lg}
}

// Read returns the body of the next well-formed message. Invalid bytes in the
// body are replaced with U+FFFD rather than rejected. It returns io.EOF when
// the stream ends cleanly before a header line, and the underlying error on
// any other I/O failure.
func (r *Reader) Read() ([]byte, error) {
	for {
		length, err := r.readHeaders()
		if err != nil {
			return nil, err
		}
		if length <= 0 {
			r.lg.Debug("protocol: frame without usable Content-Length, skipping")
			continue
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(r.br, body); err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		body = bytes.ToValidUTF8(body, []byte("�"))
		if !gjson.ValidBytes(body) {
			r.lg.Debug("protocol: dropping frame with unparsable JSON body (%d bytes)", len(body))
			continue
		}
		return body, nil
	}
}

// readHeaders consumes header lines up to the blank separator and returns the
// announced body length. An absent or non-numeric Content-Length yields 0.
// The header name match is a case-sensitive literal, which is what the
// protocol mandates and what real servers emit.
func (r *Reader) readHeaders() (int, error) {
	length := 0
	sawLine := false
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && !sawLine {
				return 0, io.EOF
			}
			if err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		sawLine = true

		line = strings.TrimSpace(line)
		if line == "" {
			return length, nil
		}
		if rest, ok := strings.CutPrefix(line, contentLengthHeader); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				length = n
			}
		}
	}
}

// Writer encodes framed messages onto a byte stream.
//
// A single Writer may be shared by both relay directions: the internal mutex
// is held across the whole header+body+flush sequence, so one frame's bytes
// are never interleaved with another's.
type Writer struct {
	mu sync.Mutex
	bw *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write frames body and flushes it.
func (w *Writer) Write(body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.bw.WriteString(contentLengthHeader + " " + strconv.Itoa(len(body)) + "\r\n\r\n"); err != nil {
		return err
	}
	if _, err := w.bw.Write(body); err != nil {
		return err
	}
	return w.bw.Flush()
}

// WriteJSON marshals v to compact JSON and writes it as one frame.
func (w *Writer) WriteJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Write(body)
}
