package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/pose"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler streams live feedback over a WebSocket. Each frame a client
// sends is answered with one Feedback message; readings of the server-side
// camera pipeline are pushed as they are produced.
type LiveHandler struct {
	app *app.App
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(a *app.App) *LiveHandler {
	return &LiveHandler{app: a}
}

type liveError struct {
	Error string `json:"error"`
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	feed, unsubscribe := h.app.Subscribe()
	defer unsubscribe()

	replies := make(chan interface{}, 16)
	stop := make(chan struct{})
	defer close(stop)
	readDone := make(chan struct{})

	// Only this goroutine reads; only the loop below writes.
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var reply interface{}
			var f pose.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				reply = liveError{Error: "invalid frame: " + err.Error()}
			} else {
				reply = h.app.FeedbackFor(f)
			}

			select {
			case replies <- reply:
			case <-stop:
				return
			}
		}
	}()

	for {
		var msg interface{}
		select {
		case <-readDone:
			return
		case fb, ok := <-feed:
			if !ok {
				return
			}
			msg = fb
		case msg = <-replies:
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
