package main

import (
	"sync"

	"github.com/mastercactapus/tilescan/scan"
)

const (
	stateIdle       = "idle"
	stateConnecting = "connecting"
	stateHoming     = "homing"
	stateScanning   = "scanning"
	stateComplete   = "complete"
	stateAborted    = "aborted"
)

// status is the JSON body of GET /api/status.
type status struct {
	State         string `json:"state"`
	ScanID        string `json:"scan_id,omitempty"`
	Visited       int    `json:"visited"`
	Total         int    `json:"total"`
	Saved         int    `json:"saved"`
	CaptureFailed int    `json:"capture_failed"`
	SaveFailed    int    `json:"save_failed"`
	Error         string `json:"error,omitempty"`
}

// tracker follows a single scan run for the status API.
type tracker struct {
	mx     sync.Mutex
	st     status
	report *scan.Report
	subs   []func(scan.Progress)
}

func newTracker(total int) *tracker {
	return &tracker{st: status{State: stateIdle, Total: total}}
}

func (t *tracker) subscribe(fn func(scan.Progress)) {
	t.mx.Lock()
	t.subs = append(t.subs, fn)
	t.mx.Unlock()
}

func (t *tracker) setState(s string) {
	t.mx.Lock()
	t.st.State = s
	t.mx.Unlock()
}

func (t *tracker) observe(p scan.Progress) {
	t.mx.Lock()
	t.st.ScanID = p.ScanID.String()
	t.st.Visited = p.Index
	switch p.Outcome.Result {
	case scan.Saved:
		t.st.Saved++
	case scan.CaptureFailed:
		t.st.CaptureFailed++
	case scan.SaveFailed:
		t.st.SaveFailed++
	}
	subs := t.subs
	t.mx.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

func (t *tracker) finish(rep *scan.Report, err error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.report = rep
	if rep != nil {
		t.st.ScanID = rep.ID.String()
	}
	if err != nil {
		t.st.State = stateAborted
		t.st.Error = err.Error()
		return
	}
	t.st.State = stateComplete
}

func (t *tracker) status() status {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.st
}

func (t *tracker) lastReport() *scan.Report {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.report
}
