package serialmux

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReplayPort_LoopsLines(t *testing.T) {
	mux := NewMockSerialMux("sensor", []string{"front,0.5", "", "left,0.2"}, time.Millisecond)
	defer mux.Close()
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	want := []string{"front,0.5", "left,0.2", "front,0.5"}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Errorf("line %d = %q, want %q", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for line %d", i)
		}
	}
}

func TestReplayPort_WriteAndClose(t *testing.T) {
	p := NewReplayPort(nil, time.Millisecond)
	if _, err := p.Write([]byte("V 0 0\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := p.Written(); got != "V 0 0\n" {
		t.Errorf("Written() = %q", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if _, err := p.Read(make([]byte, 8)); err == nil {
		t.Error("Read after Close should fail")
	}
}

func TestTestableSerialPort_Errors(t *testing.T) {
	port := NewTestableSerialPort()
	port.SetWriteError(errors.New("write failed"))
	if _, err := port.Write([]byte("a")); err == nil {
		t.Error("expected one-shot write error")
	}
	if _, err := port.Write([]byte("a")); err != nil {
		t.Errorf("second write: %v", err)
	}
	if port.WriteCalls != 2 {
		t.Errorf("WriteCalls = %d", port.WriteCalls)
	}

	port.CloseError = errors.New("close failed")
	if err := port.Close(); err == nil {
		t.Error("expected close error")
	}
	if _, err := port.Read(make([]byte, 1)); err == nil {
		t.Error("read on closed port should fail")
	}
}

func TestTestableSerialPort_SetReadTimeout(t *testing.T) {
	var port TimeoutSerialPorter = NewTestableSerialPort()
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := port.(*TestableSerialPort).ReadTimeout; got != 50*time.Millisecond {
		t.Errorf("ReadTimeout = %v", got)
	}
}

func TestOpenSerialMux_WithMockFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	mux, err := OpenSerialMux(factory, "drive", "/dev/ttyACM1", PortOptions{BaudRate: 57600})
	if err != nil {
		t.Fatalf("OpenSerialMux: %v", err)
	}
	if mux.String() != "drive" {
		t.Errorf("mux name = %q", mux.String())
	}
	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyACM1" || call.Mode.BaudRate != 57600 {
		t.Errorf("LastCall() = %+v", call)
	}

	factory.Error = errors.New("no such device")
	if _, err := OpenSerialMux(factory, "drive", "/dev/missing", PortOptions{}); err == nil {
		t.Error("expected open error")
	}
	if _, err := OpenSerialMux(factory, "drive", "/dev/x", PortOptions{StopBits: 5}); err == nil {
		t.Error("expected options error")
	}
	if len(factory.OpenCalls) != 2 {
		t.Errorf("OpenCalls = %d, want 2 (invalid options never reach Open)", len(factory.OpenCalls))
	}
}

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	if _, err := NewRealSerialMux("sensor", "/dev/definitely-not-a-tty", PortOptions{}); err == nil {
		t.Error("expected error opening a missing device")
	}
}

func TestDefaultSerialPortMode(t *testing.T) {
	m := DefaultSerialPortMode()
	if m.BaudRate != DefaultBaudRate || m.DataBits != 8 || m.Parity != NoParity || m.StopBits != OneStopBit {
		t.Errorf("DefaultSerialPortMode() = %+v", m)
	}
}
