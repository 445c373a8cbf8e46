package serialmux

import "testing"

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if opts != want {
		t.Errorf("Normalize() = %+v, want %+v", opts, want)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too high", PortOptions{DataBits: 9}},
		{"data bits too low", PortOptions{DataBits: 4}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalize(); err == nil {
				t.Error("expected error")
			}
			if _, err := tt.opts.PortMode(); err == nil {
				t.Error("PortMode should fail too")
			}
		})
	}
}

func TestPortOptions_ParityAliases(t *testing.T) {
	for in, want := range map[string]string{"none": "N", " e ": "E", "Even": "E", "o": "O", "ODD": "O"} {
		opts, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Errorf("Normalize(%q): %v", in, err)
			continue
		}
		if opts.Parity != want {
			t.Errorf("parity %q -> %q, want %q", in, opts.Parity, want)
		}
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}) {
		t.Error("defaults should equal their explicit form")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options are never equal")
	}
}

func TestPortOptions_PortMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}.PortMode()
	if err != nil {
		t.Fatalf("PortMode: %v", err)
	}
	want := SerialPortMode{BaudRate: 9600, DataBits: 7, StopBits: TwoStopBits, Parity: EvenParity}
	if *mode != want {
		t.Errorf("PortMode() = %+v, want %+v", *mode, want)
	}

	sm := serialMode(mode)
	if sm.BaudRate != 9600 || sm.DataBits != 7 {
		t.Errorf("serialMode = %+v", sm)
	}
}

func TestPortOptions_String(t *testing.T) {
	if got := (PortOptions{}).String(); got != "115200 8N1" {
		t.Errorf("String() = %q", got)
	}
	if got := (PortOptions{Parity: "?"}).String(); got[:7] != "invalid" {
		t.Errorf("String() for invalid = %q", got)
	}
}
