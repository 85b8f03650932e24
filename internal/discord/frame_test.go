// Tests for the IPC frame codec: round-trips, opcode/length encoding,
// oversized payload rejection, and truncated input handling.
// Exercises [WriteFrame] and [ReadFrame].
package discord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// Round Trips
// ///////////////////////////////////////////////

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		opcode  Opcode
		payload string
	}{
		{"handshake", OpHandshake, `{"v":1,"client_id":"app"}`},
		{"frame", OpFrame, `{"cmd":"SET_ACTIVITY"}`},
		{"close", OpClose, ""},
		{"empty payload", OpFrame, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.opcode, []byte(tt.payload)); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}

			opcode, payload, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if opcode != tt.opcode {
				t.Errorf("opcode = %d, want %d", opcode, tt.opcode)
			}
			if string(payload) != tt.payload {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
		})
	}
}

func TestFrameWireFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, OpFrame, []byte("abcd")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	raw := buf.Bytes()
	if len(raw) != frameHeaderSize+4 {
		t.Fatalf("frame length = %d, want %d", len(raw), frameHeaderSize+4)
	}
	if op := binary.LittleEndian.Uint32(raw[0:4]); op != uint32(OpFrame) {
		t.Errorf("opcode bytes = %d, want %d", op, OpFrame)
	}
	if l := binary.LittleEndian.Uint32(raw[4:8]); l != 4 {
		t.Errorf("length bytes = %d, want 4", l)
	}
	if string(raw[8:]) != "abcd" {
		t.Errorf("payload bytes = %q", raw[8:])
	}
}

// ///////////////////////////////////////////////
// Size Limits
// ///////////////////////////////////////////////

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, OpFrame, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frame still wrote %d bytes", buf.Len())
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(header[4:8], MaxPayloadSize+1)

	_, _, err := ReadFrame(bytes.NewReader(header))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

// ///////////////////////////////////////////////
// Truncated Input
// ///////////////////////////////////////////////

func TestReadFrameTruncated(t *testing.T) {
	tests := []struct {
		name string
		raw  func() []byte
	}{
		{
			name: "empty input",
			raw:  func() []byte { return nil },
		},
		{
			name: "partial header",
			raw:  func() []byte { return []byte{1, 0, 0} },
		},
		{
			name: "header promises more payload than present",
			raw: func() []byte {
				var buf bytes.Buffer
				WriteFrame(&buf, OpFrame, []byte("full payload"))
				return buf.Bytes()[:frameHeaderSize+3]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadFrame(bytes.NewReader(tt.raw()))
			if err == nil {
				t.Fatal("ReadFrame succeeded on truncated input")
			}
			if !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
				t.Errorf("err = %v, want EOF-ish", err)
			}
		})
	}
}

func TestReadFrameStreamed(t *testing.T) {
	// Two frames back to back on one reader decode in order.
	var buf bytes.Buffer
	WriteFrame(&buf, OpHandshake, []byte("one"))
	WriteFrame(&buf, OpFrame, []byte(strings.Repeat("x", 300)))

	op1, p1, err := ReadFrame(&buf)
	if err != nil || op1 != OpHandshake || string(p1) != "one" {
		t.Fatalf("first frame = %d %q %v", op1, p1, err)
	}
	op2, p2, err := ReadFrame(&buf)
	if err != nil || op2 != OpFrame || len(p2) != 300 {
		t.Fatalf("second frame = %d len=%d %v", op2, len(p2), err)
	}
}
