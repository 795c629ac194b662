package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	bodies := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"initialized","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"result":null}`,
	}
	for _, b := range bodies {
		if err := w.Write([]byte(b)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	r := NewReader(&buf, nil)
	for i, want := range bodies {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if string(got) != want {
			t.Errorf("message %d: expected %s, got %s", i, want, got)
		}
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF at stream end, got %v", err)
	}
}

func TestWriterHeaderFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	body := `{"jsonrpc":"2.0","method":"initialized"}`
	if err := w.Write([]byte(body)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "Content-Length: 40\r\n\r\n" + body
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

func TestReaderMalformedFrames(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []string
	}{
		{
			name: "missing content-length then valid frame",
			stream: "X-Whatever: 1\r\n\r\n" +
				"Content-Length: 2\r\n\r\n{}",
			want: []string{"{}"},
		},
		{
			name: "non-numeric content-length then valid frame",
			stream: "Content-Length: abc\r\n\r\n" +
				"Content-Length: 2\r\n\r\n{}",
			want: []string{"{}"},
		},
		{
			name: "lowercase header name is not recognized",
			stream: "content-length: 2\r\n\r\n" +
				"Content-Length: 2\r\n\r\n{}",
			want: []string{"{}"},
		},
		{
			name: "invalid json body dropped",
			stream: "Content-Length: 5\r\n\r\n{oops" +
				"Content-Length: 2\r\n\r\n{}",
			want: []string{"{}"},
		},
		{
			name: "extra headers ignored",
			stream: "Content-Type: application/vscode-jsonrpc\r\nContent-Length: 2\r\n\r\n{}",
			want: []string{"{}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.stream), nil)
			for i, want := range tt.want {
				got, err := r.Read()
				if err != nil {
					t.Fatalf("Read %d failed: %v", i, err)
				}
				if string(got) != want {
					t.Errorf("message %d: expected %s, got %s", i, want, got)
				}
			}
			if _, err := r.Read(); err != io.EOF {
				t.Errorf("Expected io.EOF after last frame, got %v", err)
			}
		})
	}
}

func TestReaderInvalidUTF8Replaced(t *testing.T) {
	body := []byte(`{"message":"a` + string([]byte{0xff}) + `b"}`)
	var buf bytes.Buffer
	if err := NewWriter(&buf).Write(body); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := NewReader(&buf, nil).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := `{"message":"a` + "�" + `b"}`
	if string(got) != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestReaderEOFSemantics(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantErr error
	}{
		{
			name:    "empty stream",
			stream:  "",
			wantErr: io.EOF,
		},
		{
			name:    "eof mid headers",
			stream:  "Content-Length: 10\r\n",
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "eof mid body",
			stream:  "Content-Length: 10\r\n\r\n{}",
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.stream), nil)
			if _, err := r.Read(); err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteJSON(map[string]any{"jsonrpc": "2.0", "method": "shutdown"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	got, err := NewReader(&buf, nil).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != `{"jsonrpc":"2.0","method":"shutdown"}` {
		t.Errorf("Unexpected body: %s", got)
	}
}
