package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vrptw/internal/auth"
	"vrptw/internal/model"
)

// WebSocket run event stream. Messages follow the graphql-transport-ws shape:
//
//	-> {"type":"connection_init"}                        <- {"type":"connection_ack"}
//	-> {"type":"subscribe","id":"1","payload":{"runId":"..."}}
//	<- {"type":"next","id":"1","payload":<RunEvent>} ...  <- {"type":"complete","id":"1"}
//
// Connecting with ?runId= subscribes to that run right away under the run id.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsReadTimeout = 60 * time.Second
	wsPingEvery   = 20 * time.Second
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	RunID string `json:"runId"`
}

// wsSession serializes writes to one connection and tracks its subscriptions.
type wsSession struct {
	s      *Server
	r      *http.Request
	tenant string

	wmu  sync.Mutex
	conn *websocket.Conn

	mu   sync.Mutex
	subs map[string]wsSub // subscription id -> run stream
}

type wsSub struct {
	runID string
	ch    chan model.RunEvent
}

// WSHandler handles /v1/ws. Browsers cannot set headers on the upgrade
// request, so a token query parameter is accepted in place of Authorization.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	var pr auth.Principal
	var err error
	if tok := r.URL.Query().Get("token"); tok != "" && r.Header.Get("Authorization") == "" {
		pr, err = s.Auth.Verify(tok)
	} else {
		pr, err = s.getPrincipal(r)
	}
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ss := &wsSession{s: s, r: r, tenant: pr.Tenant, conn: conn, subs: map[string]wsSub{}}
	done := make(chan struct{})
	defer func() {
		close(done)
		ss.closeAll()
		_ = conn.Close()
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsReadTimeout)) })

	go func() {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ss.write(wsMessage{Type: "ping"}); err != nil {
					return
				}
			}
		}
	}()

	if rid := r.URL.Query().Get("runId"); rid != "" {
		ss.subscribe(rid, rid)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		switch msg.Type {
		case "connection_init":
			_ = ss.write(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = ss.write(wsMessage{Type: "pong"})
		case "pong":
		case "subscribe":
			var pl subscribePayload
			if err := json.Unmarshal(msg.Payload, &pl); err != nil || pl.RunID == "" || msg.ID == "" {
				ss.sendError(msg.ID, "subscribe needs an id and payload.runId")
				continue
			}
			ss.subscribe(msg.ID, pl.RunID)
		case "complete":
			ss.unsubscribe(msg.ID)
		default:
			ss.sendError(msg.ID, "unknown message type "+msg.Type)
		}
	}
}

func (ss *wsSession) write(v any) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	_ = ss.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ss.conn.WriteJSON(v)
}

func (ss *wsSession) sendError(id, message string) {
	payload, _ := json.Marshal(map[string]string{"message": message})
	_ = ss.write(wsMessage{Type: "error", ID: id, Payload: payload})
}

// subscribe sends the stored run, then its events until it finishes.
func (ss *wsSession) subscribe(id, runID string) {
	ss.mu.Lock()
	if _, dup := ss.subs[id]; dup {
		ss.mu.Unlock()
		ss.sendError(id, "subscription id already in use")
		return
	}
	ch := ss.s.Broker.Subscribe(runID)
	ss.subs[id] = wsSub{runID: runID, ch: ch}
	ss.mu.Unlock()

	run, err := ss.s.Store.GetRun(ss.r.Context(), ss.tenant, runID)
	if err != nil {
		ss.unsubscribe(id)
		ss.sendError(id, "run not found")
		_ = ss.write(wsMessage{Type: "complete", ID: id})
		return
	}
	if !ss.next(id, model.RunEvent{Type: snapshotEvent, RunID: runID, At: time.Now().UTC(), Run: run}) {
		return
	}

	go func() {
		for evt := range ch {
			if !ss.next(id, evt) {
				return
			}
		}
	}()
}

// next forwards evt and reports whether more events should follow.
func (ss *wsSession) next(id string, evt model.RunEvent) bool {
	payload, err := json.Marshal(evt)
	if err != nil {
		return true
	}
	if err := ss.write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
		return false
	}
	if evt.Run.State.Done() {
		ss.unsubscribe(id)
		_ = ss.write(wsMessage{Type: "complete", ID: id})
		return false
	}
	return true
}

func (ss *wsSession) unsubscribe(id string) {
	ss.mu.Lock()
	sub, ok := ss.subs[id]
	delete(ss.subs, id)
	ss.mu.Unlock()
	if ok {
		ss.s.Broker.Unsubscribe(sub.runID, sub.ch)
	}
}

func (ss *wsSession) closeAll() {
	ss.mu.Lock()
	subs := ss.subs
	ss.subs = map[string]wsSub{}
	ss.mu.Unlock()
	for _, sub := range subs {
		ss.s.Broker.Unsubscribe(sub.runID, sub.ch)
	}
}
