package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vrptw/internal/model"
)

// heartbeatEvery is how often idle event streams are kept alive.
var heartbeatEvery = 15 * time.Second

// snapshotEvent is the type of the first event on a stream: the run as stored
// when the client subscribed.
const snapshotEvent = "run.state"

// streamRun serves the run's events as Server-Sent Events until the run
// finishes or the client goes away.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, tenant, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	// subscribe before reading the run so no transition is missed in between
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	run, err := s.Store.GetRun(r.Context(), tenant, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, model.RunEvent{Type: snapshotEvent, RunID: id, At: time.Now().UTC(), Run: run})
	flusher.Flush()
	if run.State.Done() {
		return
	}

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
			if evt.Run.State.Done() {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().UTC().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt model.RunEvent) {
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", evt.Type)
	fmt.Fprintf(w, "data: %s\n\n", b)
}
