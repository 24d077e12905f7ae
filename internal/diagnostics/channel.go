package diagnostics

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Channel is the one-way pipe from the writer roles to the Reporter.
// Each end is closed at most once per process, which keeps end-of-stream
// observable once every writer-side holder has exited.
type Channel struct {
	r *os.File
	w *os.File

	rOnce sync.Once
	wOnce sync.Once
	rErr  error
	wErr  error
}

// NewChannel creates a pipe. A positive size asks the kernel for that
// capacity; failing to resize is not an error.
func NewChannel(size int) (*Channel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	if size > 0 {
		_ = setPipeSize(w, size)
	}
	return &Channel{r: r, w: w}, nil
}

// Reader returns the read end.
func (c *Channel) Reader() *os.File {
	return c.r
}

// Writer returns the write end.
func (c *Channel) Writer() *os.File {
	return c.w
}

// CloseReader closes the read end. Safe to call multiple times.
func (c *Channel) CloseReader() error {
	c.rOnce.Do(func() {
		c.rErr = c.r.Close()
	})
	return c.rErr
}

// CloseWriter closes the write end. Safe to call multiple times.
func (c *Channel) CloseWriter() error {
	c.wOnce.Do(func() {
		c.wErr = c.w.Close()
	})
	return c.wErr
}

// Close closes both ends.
func (c *Channel) Close() error {
	rErr := c.CloseReader()
	wErr := c.CloseWriter()
	if rErr != nil {
		return rErr
	}
	return wErr
}

// WriteTag writes a sentinel line to the write end.
func (c *Channel) WriteTag(t Tag) error {
	return writeTag(c.w, t)
}

func writeTag(w io.Writer, t Tag) error {
	if _, err := io.WriteString(w, t.Line()); err != nil {
		return fmt.Errorf("writing %s: %w", t, err)
	}
	return nil
}
