package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/scan"
)

const tileEvents = "/events/tiles"

type api struct {
	http.Handler
	t     *tracker
	abort func()
	sse   *sse.Server
	log   *zap.Logger
}

func newAPI(t *tracker, dir string, abort func(), log *zap.Logger) *api {
	r := mux.NewRouter()
	log = log.With(zap.String("component", "api"))

	a := &api{
		Handler: r,
		t:       t,
		abort:   abort,
		log:     log,
		sse: sse.NewServer(&sse.Options{
			Logger: zap.NewStdLog(log),
		}),
	}

	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/report", a.report).Methods("GET")
	r.HandleFunc("/api/abort", a.abortScan).Methods("POST")
	r.PathPrefix("/tiles/").Handler(http.StripPrefix("/tiles/", http.FileServer(http.Dir(dir)))).Methods("GET")
	r.PathPrefix("/events/").Handler(a.sse)

	t.subscribe(func(p scan.Progress) {
		data, err := json.Marshal(p)
		if err != nil {
			log.Error("marshal progress", zap.Error(err))
			return
		}
		a.sse.SendMessage(tileEvents, sse.SimpleMessage(string(data)))
	})

	return a
}

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("encode response", zap.Error(err))
	}
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	a.writeJSON(w, a.t.status())
}

func (a *api) report(w http.ResponseWriter, req *http.Request) {
	rep := a.t.lastReport()
	if rep == nil {
		http.Error(w, "scan still running", http.StatusNotFound)
		return
	}
	a.writeJSON(w, rep)
}

func (a *api) abortScan(w http.ResponseWriter, req *http.Request) {
	a.log.Warn("abort requested", zap.String("remote", req.RemoteAddr))
	a.abort()
	w.WriteHeader(http.StatusAccepted)
}

// serveAPI starts serving a on addr. The returned func closes the server
// and stops the event dispatcher.
func serveAPI(addr string, a *api, log *zap.Logger) (net.Addr, func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		log.Debug("request", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.String("remote", req.RemoteAddr))
		a.ServeHTTP(w, req)
	})}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status api stopped", zap.Error(err))
		}
	}()
	log.Info("status api listening", zap.String("addr", l.Addr().String()))
	return l.Addr(), func() {
		srv.Close()
		a.sse.Shutdown()
	}, nil
}
