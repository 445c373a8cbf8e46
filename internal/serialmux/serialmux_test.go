package serialmux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// PartialWritePort reports fewer bytes written than requested.
type PartialWritePort struct{ *TestableSerialPort }

func (p *PartialWritePort) Write(data []byte) (int, error) {
	p.TestableSerialPort.Write(data)
	return len(data) - 1, nil
}

func TestNewSerialMux(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("sensor", port)

	if mux == nil {
		t.Fatal("NewSerialMux returned nil")
	}
	if mux.port != port {
		t.Error("SerialMux port not set correctly")
	}
	if mux.String() != "sensor" {
		t.Errorf("String() = %q, want sensor", mux.String())
	}
}

func TestSerialMux_SubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux("sensor", NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, _ := mux.Subscribe()
	if id1 == id2 {
		t.Fatal("subscription IDs should be unique")
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	mux.Unsubscribe(id1)
	mux.Unsubscribe("does-not-exist")

	mux.subscriberMu.Lock()
	defer mux.subscriberMu.Unlock()
	if len(mux.subscribers) != 1 {
		t.Errorf("subscriber count = %d, want 1", len(mux.subscribers))
	}
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("drive", port)

	if err := mux.SendCommand("V 0.200 0.000"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := mux.SendCommand("V 0.000 0.000\n"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got, want := port.GetWrittenData(), "V 0.200 0.000\nV 0.000 0.000\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSerialMux_SendCommand_Errors(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("drive", port)
	port.SetWriteError(errors.New("cable pulled"))
	if err := mux.SendCommand("X"); err == nil || !strings.Contains(err.Error(), "cable pulled") {
		t.Errorf("SendCommand error = %v", err)
	}

	partial := NewSerialMux("drive", &PartialWritePort{NewTestableSerialPort()})
	if err := partial.SendCommand("hello"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("partial write error = %v, want ErrWriteFailed", err)
	}
}

func TestSerialMux_Initialise(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("sensor", port)

	if err := mux.Initialise([]string{"RATE 20", "MODE CSV"}); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if got := port.GetWrittenData(); got != "RATE 20\nMODE CSV\n" {
		t.Errorf("written = %q", got)
	}

	port.SetWriteError(errors.New("boom"))
	err := mux.Initialise([]string{"RATE 20"})
	if err == nil || !strings.Contains(err.Error(), `"RATE 20"`) {
		t.Errorf("Initialise error = %v, want mention of the failing command", err)
	}
}

func TestSerialMux_Monitor(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("sensor", port)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("front,0.42\nleft,1.5\n"))
	for _, want := range []string{"front,0.42", "left,1.5"} {
		select {
		case got := <-ch:
			if got != want {
				t.Errorf("line = %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSerialMux_Monitor_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("sensor", port)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()
	port.FailNextRead(errors.New("device reset"))

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "device reset") {
			t.Errorf("Monitor returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not surface the read error")
	}
}

func TestSerialMux_Monitor_EOF(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = false
	port.AddReadData([]byte("front,1\n"))
	mux := NewSerialMux("sensor", port)

	if err := mux.Monitor(context.Background()); err != nil {
		t.Errorf("Monitor at EOF = %v, want nil", err)
	}
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("sensor", port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if !port.Closed {
		t.Error("port should be closed")
	}
}

func TestSerialMux_AttachAdminRoutes(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux("drive", port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	req := httptest.NewRequest(http.MethodGet, "/debug/drive-send-command", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("send-command page status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "drive-send-command-api") {
		t.Errorf("page does not post to the api route: %s", rec.Body.String())
	}

	form := url.Values{"command": {"V 0.000 0.000"}}
	req = httptest.NewRequest(http.MethodPost, "/debug/drive-send-command-api", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("send-command-api status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := port.GetWrittenData(); got != "V 0.000 0.000\n" {
		t.Errorf("written = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/drive-send-command-api", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET send-command-api status = %d, want 405", rec.Code)
	}
}

func TestRandomID(t *testing.T) {
	id := randomID()
	if len(id) != 16 {
		t.Errorf("randomID length = %d, want 16", len(id))
	}
	if id == randomID() {
		t.Error("randomID should not repeat")
	}
}
