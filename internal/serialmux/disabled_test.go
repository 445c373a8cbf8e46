package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDisabledSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	d := NewDisabledSerialMux("drive")
	id, ch := d.Subscribe()
	d.Unsubscribe(id)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestDisabledSerialMux_CloseClosesAllChannels(t *testing.T) {
	d := NewDisabledSerialMux("drive")
	_, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []chan string{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Error("expected closed channel")
		}
	}
	_, late := d.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDisabledSerialMux_DropsCommands(t *testing.T) {
	d := NewDisabledSerialMux("drive")
	var _ SerialMuxInterface = d

	if err := d.Initialise([]string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := d.SendCommand("V 0 0"); err != nil {
			t.Fatal(err)
		}
	}
	if d.Sent() != 3 {
		t.Errorf("Sent() = %d, want 3", d.Sent())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Monitor(ctx); err != context.Canceled {
		t.Errorf("Monitor = %v", err)
	}

	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/drive-disabled", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
