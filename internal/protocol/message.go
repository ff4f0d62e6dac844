package protocol

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MessageDelimiter terminates every dispatch request on the wire.
const MessageDelimiter = '\n'

var (
	ErrEmptyMessage    = errors.New("empty dispatch message")
	ErrMessageTooLarge = errors.New("dispatch message exceeds size limit")
)

// DispatchMessage is what the dispatcher sends to an agent: one shell command
// plus any files that should exist in the workspace before it runs.
type DispatchMessage struct {
	Command string `json:"command"`
	Files   []File `json:"files"`
}

type File struct {
	Name    string `json:"name"`
	Content Bytes  `json:"content"`
}

// FileNames returns the names of the attached files in order.
func (m DispatchMessage) FileNames() []string {
	names := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		names = append(names, f.Name)
	}
	return names
}

// Bytes is file content encoded as a JSON array of byte values, the format
// agents and dispatchers have always exchanged. Base64 strings are accepted
// when decoding.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid base64 file content: %w", err)
		}
		*b = decoded
		return nil
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("invalid file content: %w", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("invalid file content: byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// WriteMessage serializes msg and writes it followed by the delimiter.
func WriteMessage(w io.Writer, msg DispatchMessage) error {
	if msg.Files == nil {
		msg.Files = []File{}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}
	data = append(data, MessageDelimiter)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write dispatch message: %w", err)
	}
	return nil
}

// ReadMessage reads bytes up to and including the first delimiter and
// decodes them. A stream that ends before the delimiter is still decoded if it
// carried any bytes; a stream that carried none yields ErrEmptyMessage.
// maxBytes <= 0 disables the size check.
func ReadMessage(r io.Reader, maxBytes int) (DispatchMessage, error) {
	var msg DispatchMessage

	raw, err := readFrame(r, maxBytes)
	if err != nil {
		return msg, err
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode dispatch message: %w", err)
	}
	return msg, nil
}

func readFrame(r io.Reader, maxBytes int) ([]byte, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var frame []byte
	for {
		chunk, err := br.ReadSlice(MessageDelimiter)
		frame = append(frame, chunk...)
		if maxBytes > 0 && len(frame) > maxBytes {
			return nil, ErrMessageTooLarge
		}
		if err == nil {
			return frame, nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(frame)) == 0 {
				return nil, ErrEmptyMessage
			}
			return frame, nil
		}
		return nil, fmt.Errorf("failed to read dispatch message: %w", err)
	}
}
