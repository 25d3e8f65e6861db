package navd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// MaxLineBytes bounds one request or response line.
const MaxLineBytes = 16 << 20

var ErrLineTooLong = errors.New("jsonl line too long")

// lineCodec frames one JSON value per line. Blank lines are skipped and a
// final line without a trailing newline is accepted.
type lineCodec struct {
	r   *bufio.Reader
	w   *bufio.Writer
	max int
}

func newLineCodec(rw io.ReadWriter) *lineCodec {
	return &lineCodec{r: bufio.NewReader(rw), w: bufio.NewWriter(rw), max: MaxLineBytes}
}

func (c *lineCodec) read() ([]byte, error) {
	for {
		line, err := c.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *lineCodec) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		if len(buf)+len(chunk) > c.max {
			return nil, ErrLineTooLong
		}
		buf = append(buf, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return buf, err
		}
	}
}

// write encodes v, terminates it with a newline and flushes.
func (c *lineCodec) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := c.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return c.w.Flush()
}
