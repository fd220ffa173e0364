// Package main submits an async solve and follows its events over WebSocket.
//
//	go run ./scripts [-solomon c101.txt] [-customers 8] [-solver cbc]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// demoInstance is a depot and three customers on a 20x20 grid.
const demoInstance = `{"instance":{"name":"demo","vehicles":2,"capacity":10,
"nodes":[0,1,2,3],
"demand":{"0":0,"1":4,"2":3,"3":5},
"coords":{"0":{"x":10,"y":10},"1":{"x":0,"y":20},"2":{"x":20,"y":20},"3":{"x":15,"y":0}},
"timeWindows":{"0":{"earliest":0,"latest":200},"1":{"earliest":0,"latest":100},"2":{"earliest":0,"latest":150},"3":{"earliest":20,"latest":120}},
"serviceTime":{"0":0,"1":5,"2":5,"3":5}}}`

func main() {
	solomon := flag.String("solomon", "", "Solomon instance file (default: built-in demo instance)")
	customers := flag.Int("customers", 0, "keep only the first n customers")
	solverName := flag.String("solver", "", "solver name (server default when empty)")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	var body io.Reader = bytes.NewReader([]byte(demoInstance))
	contentType := "application/json"
	if *solomon != "" {
		b, err := os.ReadFile(*solomon)
		if err != nil {
			log.Fatal(err)
		}
		body = bytes.NewReader(b)
		contentType = "text/plain"
	}
	q := url.Values{"async": {"true"}}
	if *customers > 0 {
		q.Set("customers", fmt.Sprint(*customers))
	}
	if *solverName != "" {
		q.Set("solver", *solverName)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve?"+q.Encode(), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		log.Fatalf("solve: %s: %s", resp.Status, b)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("run id=%s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]string{"runId": run.ID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			switch m.Type {
			case "ping":
				_ = c.WriteJSON(wsMessage{Type: "pong"})
			case "complete":
				log.Printf("WS <- complete")
				return
			default:
				log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			}
		}
	}()

	select {
	case <-time.After(10 * time.Minute):
		log.Printf("gave up waiting for run %s", run.ID)
	case <-done:
	}
}
