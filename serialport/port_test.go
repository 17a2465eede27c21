package serialport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice returns one queued chunk per Read, and nothing once empty.
type fakeDevice struct {
	chunks  []string
	written bytes.Buffer
	resets  int
	drains  int
	closes  int
	readErr error
}

func (f *fakeDevice) Read(b []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, f.chunks[0])
	f.chunks = f.chunks[1:]
	return n, nil
}
func (f *fakeDevice) Write(b []byte) (int, error) { return f.written.Write(b) }
func (f *fakeDevice) Close() error                { f.closes++; return nil }
func (f *fakeDevice) resetInput() error           { f.resets++; f.chunks = nil; return nil }
func (f *fakeDevice) drain() error                { f.drains++; return nil }

func TestPort_ReadLine(t *testing.T) {
	dev := &fakeDevice{chunks: []string{"DO", "NE\r\nx=1\n", "", "ERR"}}
	p := newPort("/dev/ttyTEST", dev)

	line, ok, err := p.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)

	line, ok, err = p.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "DONE", line)

	// second line is already buffered
	line, ok, _ = p.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "x=1", line)

	_, ok, _ = p.ReadLine()
	assert.False(t, ok)
	_, ok, _ = p.ReadLine()
	assert.False(t, ok)

	// partial line is dropped by a reset
	require.NoError(t, p.ResetInput())
	assert.Equal(t, 1, dev.resets)
	dev.chunks = []string{"OK\n"}
	line, ok, _ = p.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "OK", line)
}

func TestPort_ReadError(t *testing.T) {
	dev := &fakeDevice{readErr: errors.New("device disconnected")}
	p := newPort("/dev/ttyTEST", dev)

	_, _, err := p.ReadLine()
	assert.EqualError(t, err, "device disconnected")
}

func TestPort_WriteFlushClose(t *testing.T) {
	dev := &fakeDevice{}
	p := newPort("/dev/ttyTEST", dev)
	assert.Equal(t, "/dev/ttyTEST", p.Name())

	_, err := io.WriteString(p, "HOME\n")
	require.NoError(t, err)
	require.NoError(t, p.Flush())
	assert.Equal(t, "HOME\n", dev.written.String())
	assert.Equal(t, 1, dev.drains)

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, dev.closes)

	_, _, err = p.ReadLine()
	assert.Equal(t, io.ErrClosedPipe, err)
}
