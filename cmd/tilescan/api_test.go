package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/scan"
)

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestAPI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tile_x0_y0.png"), []byte("png"), 0o644))

	tr := newTracker(4)
	var aborted bool
	srv := httptest.NewServer(newAPI(tr, dir, func() { aborted = true }, zap.NewNop()))
	defer srv.Close()

	var st status
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &st))
	assert.Equal(t, status{State: stateIdle, Total: 4}, st)

	id := uuid.New()
	tr.setState(stateScanning)
	tr.observe(scan.Progress{ScanID: id, Index: 1, Total: 4, Outcome: scan.TileOutcome{Result: scan.Saved}})
	tr.observe(scan.Progress{ScanID: id, Index: 2, Total: 4, Outcome: scan.TileOutcome{Result: scan.CaptureFailed}})

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &st))
	assert.Equal(t, stateScanning, st.State)
	assert.Equal(t, id.String(), st.ScanID)
	assert.Equal(t, 2, st.Visited)
	assert.Equal(t, 1, st.Saved)
	assert.Equal(t, 1, st.CaptureFailed)

	var rep scan.Report
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/report", &rep))

	resp, err := http.Post(srv.URL+"/api/abort", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, aborted)

	tr.finish(&scan.Report{ID: id, Width: 2, Height: 2}, errors.New("context canceled"))
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/report", &rep))
	assert.Equal(t, id, rep.ID)
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &st))
	assert.Equal(t, stateAborted, st.State)
	assert.Equal(t, "context canceled", st.Error)

	resp, err = http.Get(srv.URL + "/tiles/tile_x0_y0.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "png", string(body))

	resp, err = http.Get(srv.URL + "/api/abort")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServeAPI(t *testing.T) {
	a := newAPI(newTracker(1), t.TempDir(), func() {}, zap.NewNop())
	addr, stop, err := serveAPI("127.0.0.1:0", a, zap.NewNop())
	require.NoError(t, err)
	base := "http://" + addr.String()

	var st status
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/status", &st))
	assert.Equal(t, stateIdle, st.State)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.Get(base + tileEvents)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream still open after stop")
	}

	_, err = http.Get(base + "/api/status")
	assert.Error(t, err)
}

func TestTracker_Subscribe(t *testing.T) {
	tr := newTracker(1)
	var got []scan.Progress
	tr.subscribe(func(p scan.Progress) { got = append(got, p) })

	p := scan.Progress{ScanID: uuid.New(), Index: 1, Total: 1, Outcome: scan.TileOutcome{Result: scan.SaveFailed}}
	tr.observe(p)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
	assert.Equal(t, 1, tr.status().SaveFailed)

	tr.finish(&scan.Report{ID: p.ScanID}, nil)
	assert.Equal(t, stateComplete, tr.status().State)
}
