package daemon

import (
	"bytes"
	"debug/elf"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/dumc-project/dumc/compiler"
)

func TestServeCompilesOverWebsocket(t *testing.T) {
	srv := httptest.NewServer(New(compiler.Options{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	src := []byte("@main() { ret 1 }")
	if err := conn.WriteMessage(websocket.BinaryMessage, src); err != nil {
		t.Fatalf("write: %v", err)
	}

	messageType, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("got message type %d, want BinaryMessage payload: %s", messageType, msg)
	}

	f, err := elf.NewFile(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("response is not a valid ELF object: %v", err)
	}
	defer f.Close()
	if f.Section(".text") == nil {
		t.Error("response object has no .text section")
	}
}

func TestServeReportsCompileErrors(t *testing.T) {
	srv := httptest.NewServer(New(compiler.Options{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("not a program")); err != nil {
		t.Fatalf("write: %v", err)
	}
	messageType, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("got message type %d, want TextMessage", messageType)
	}
	if !strings.HasPrefix(string(msg), "error: ") {
		t.Errorf("response = %q, want error: prefix", msg)
	}
}
