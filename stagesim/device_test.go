package stagesim

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/tilescan/coord"
)

func readAll(t *testing.T, d *Device) []string {
	t.Helper()
	var lines []string
	for {
		l, ok, err := d.ReadLine()
		require.NoError(t, err)
		if !ok {
			return lines
		}
		lines = append(lines, l)
	}
}

func TestDevice_Protocol(t *testing.T) {
	d := New()
	d.Poll = time.Millisecond

	_, err := d.Write([]byte("HOME\nMOVE 100 -5\nmove 1\nJOG\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"DONE", "DONE", "ERR bad params", "ERR unknown command"}, readAll(t, d))
	assert.Equal(t, coord.Point{X: 100, Y: -5}, d.Position())
	assert.Equal(t, []string{"HOME", "MOVE 100 -5", "move 1", "JOG"}, d.Received())
}

func TestDevice_PartialWrites(t *testing.T) {
	d := New()
	d.Poll = time.Millisecond

	d.Write([]byte("MOVE 3"))
	assert.Empty(t, readAll(t, d))
	d.Write([]byte(" 4\n"))
	assert.Equal(t, []string{"DONE"}, readAll(t, d))
	assert.Equal(t, coord.Point{X: 3, Y: 4}, d.Position())
}

func TestDevice_Limit(t *testing.T) {
	d := New()
	d.Poll = time.Millisecond
	d.Limit = coord.Point{X: 10, Y: 10}

	d.Write([]byte("MOVE 11 0\n"))
	assert.Equal(t, []string{"ERR out of range"}, readAll(t, d))
	assert.Equal(t, coord.Point{}, d.Position())
}

func TestDevice_ResetInput(t *testing.T) {
	d := New("booting", "READY")
	d.Poll = time.Millisecond
	d.Delay = 20 * time.Millisecond

	d.Write([]byte("HOME\n"))
	require.NoError(t, d.ResetInput())

	// the banner is gone, the delayed response is not
	l, ok, err := d.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, l)

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, []string{"DONE"}, readAll(t, d))
}

func TestDevice_Close(t *testing.T) {
	d := New()
	require.NoError(t, d.Close())
	assert.Equal(t, io.ErrClosedPipe, d.Close())
	assert.Equal(t, 1, d.Closes())

	_, _, err := d.ReadLine()
	assert.Equal(t, io.ErrClosedPipe, err)
	_, err = d.Write([]byte("HOME\n"))
	assert.Equal(t, io.ErrClosedPipe, err)
}
