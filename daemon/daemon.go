// Package daemon implements `dumc -serve`: a compile daemon that
// accepts source over a websocket connection and replies with the
// compiled ELF64 object, one request/response pair per message.
//
// The websocket upgrade and per-connection read loop are grounded on
// scm/network.go's "websocket" builtin (same gorilla/websocket
// Upgrader config, the same close-vs-error distinction on ReadMessage).
// Request correlation reuses storage/compute.go's gls.Go spawn (there,
// a panic-recovering worker goroutine with no value propagation) and
// adds a gls.ContextManager on top so each connection's goroutine
// carries a request ID in goroutine-local storage, letting log lines
// from deep inside a single compile (which never receives a context
// parameter — compiler is a synchronous library) still carry it.
package daemon

import (
	"bytes"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/jtolds/gls"

	"github.com/dumc-project/dumc/compiler"
	"github.com/dumc-project/dumc/objfile"
)

var mgr = gls.NewContextManager()

type ctxKey int

const reqIDKey ctxKey = 0

// Server compiles incoming sources with a fixed set of codegen options.
type Server struct {
	opts     compiler.Options
	upgrader websocket.Upgrader
	counter  uint64
}

// New returns a Server that lowers every request with opts.
func New(opts compiler.Options) *Server {
	return &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a websocket and serves it until the
// client closes the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("daemon: upgrade failed: %v", err)
		return
	}
	id := atomic.AddUint64(&s.counter, 1)
	gls.Go(func() {
		mgr.SetValues(gls.Values{reqIDKey: id}, func() {
			s.serveConn(ws)
		})
	})
}

func (s *Server) serveConn(ws *websocket.Conn) {
	defer ws.Close()
	for {
		messageType, msg, err := ws.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok {
				logf("connection closed")
				return
			}
			logf("read error: %v", err)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		obj, err := compiler.Compile(msg, s.opts)
		if err != nil {
			logf("compile error: %v", err)
			ws.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
			continue
		}

		var buf bytes.Buffer
		if err := objfile.Write(&buf, obj); err != nil {
			logf("objfile write error: %v", err)
			ws.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
			continue
		}
		logf("compiled %d bytes of source into %d byte object", len(msg), buf.Len())
		if err := ws.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			logf("write error: %v", err)
			return
		}
	}
}

func logf(format string, args ...interface{}) {
	id, _ := mgr.GetValue(reqIDKey)
	log.Printf("daemon[conn %v]: "+format, append([]interface{}{id}, args...)...)
}

// ListenAndServe starts the HTTP server hosting the websocket endpoint.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("daemon: listening on %s", addr)
	return http.ListenAndServe(addr, s)
}
