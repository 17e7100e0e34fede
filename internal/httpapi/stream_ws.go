package httpapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vineetp6/serving/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamHandler is the websocket transport for streaming predict. Each
// connection owns exactly one session, pinned to the version resolved at
// upgrade time. Client text frames are PredictRequest chunks; server
// frames are StreamFrame messages. The session's terminal error, if any,
// arrives as a frame with Done set.
func streamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec, err := specFromRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts := runOptionsFromRequest(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}
		defer conn.Close()

		// Gorilla connections allow one concurrent writer; the callback
		// fires on the SendChunk goroutine but close frames race it.
		var writeMu sync.Mutex
		send := func(frame types.StreamFrame) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(frame)
		}

		sess, err := svc.OpenStream(spec, opts, func(resp *types.PredictResponse, cerr error) {
			if cerr != nil {
				send(types.StreamFrame{Error: cerr.Error(), Done: true})
				return
			}
			send(types.StreamFrame{Response: resp})
		})
		if err != nil {
			send(types.StreamFrame{Error: err.Error(), Done: true})
			logError(r, statusForError(err), err)
			return
		}
		defer sess.Close()

		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		for {
			var req types.PredictRequest
			if err := conn.ReadJSON(&req); err != nil {
				// Client closed the stream; Close releases the pin.
				send(types.StreamFrame{Done: true})
				return
			}
			if err := sess.SendChunk(joined, &req); err != nil {
				// Terminal error already delivered through the callback.
				return
			}
		}
	}
}
