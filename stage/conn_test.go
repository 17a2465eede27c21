package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mastercactapus/tilescan/stagesim"
)

func newTestConn(t *testing.T) (*Conn, *stagesim.Device) {
	d := stagesim.New()
	d.Poll = 5 * time.Millisecond
	return NewConn(d, zaptest.NewLogger(t)), d
}

func TestCommand_Line(t *testing.T) {
	assert.Equal(t, "HOME", Home{}.Line())
	assert.Equal(t, "MOVE 100 50", MoveTo{X: 100, Y: 50}.Line())
	assert.Equal(t, "MOVE -3 0", MoveTo{X: -3}.Line())
}

func TestConn_Send(t *testing.T) {
	c, d := newTestConn(t)
	d.Chatter = []string{"", "x=0 y=0", "  "}

	err := c.Send(context.Background(), MoveTo{X: 100, Y: 50}, DoneToken, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOVE 100 50"}, d.Received())
}

func TestConn_Send_CaseInsensitive(t *testing.T) {
	c, d := newTestConn(t)
	d.Fault = func(string) string { return "move done." }

	err := c.Send(context.Background(), Home{}, "Done", time.Second)
	assert.NoError(t, err)
}

func TestConn_Send_SubstringMatch(t *testing.T) {
	// containment, not framing: UNDONE is accepted as DONE
	c, d := newTestConn(t)
	d.Fault = func(string) string { return "UNDONE" }

	err := c.Send(context.Background(), Home{}, DoneToken, time.Second)
	assert.NoError(t, err)
}

func TestConn_Send_DeviceError(t *testing.T) {
	for _, resp := range []string{"ERR bad params", "error: limit switch", "Err"} {
		t.Run(resp, func(t *testing.T) {
			c, d := newTestConn(t)
			d.Chatter = []string{"moving"}
			d.Fault = func(string) string { return resp }

			err := c.Send(context.Background(), MoveTo{X: 1, Y: 2}, DoneToken, time.Second)
			var devErr *DeviceError
			require.True(t, errors.As(err, &devErr), "got %v", err)
			assert.Equal(t, resp, devErr.Detail)
			assert.Equal(t, "MOVE 1 2", devErr.Command)
		})
	}
}

func TestConn_Send_DiscardsStaleInput(t *testing.T) {
	c, d := newTestConn(t)
	d.Send("ERR from an earlier command")

	err := c.Send(context.Background(), Home{}, DoneToken, time.Second)
	assert.NoError(t, err)
}

func TestConn_Send_EmptyToken(t *testing.T) {
	c, d := newTestConn(t)

	err := c.Send(context.Background(), Home{}, "", time.Second)
	assert.Equal(t, ErrEmptyToken, err)
	assert.Empty(t, d.Received())
}

func TestConn_Send_Timeout(t *testing.T) {
	const (
		timeout = 60 * time.Millisecond
		poll    = 10 * time.Millisecond
	)
	c, d := newTestConn(t)
	d.Poll = poll
	d.Mute = true

	start := time.Now()
	err := c.Send(context.Background(), Home{}, DoneToken, timeout)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.GreaterOrEqual(t, elapsed, timeout)
	// one poll interval plus scheduling slack
	assert.Less(t, elapsed, timeout+poll+40*time.Millisecond)
}

func TestConn_Send_Chatter_Timeout(t *testing.T) {
	c, d := newTestConn(t)
	d.Fault = func(string) string { return "busy" }

	err := c.Send(context.Background(), Home{}, DoneToken, 30*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestConn_Send_Canceled(t *testing.T) {
	c, d := newTestConn(t)
	d.Mute = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Send(ctx, Home{}, DoneToken, 5*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConn_Send_Closed(t *testing.T) {
	c, _ := newTestConn(t)
	require.NoError(t, c.Close())

	err := c.Send(context.Background(), Home{}, DoneToken, time.Second)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}
