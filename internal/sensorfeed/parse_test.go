package sensorfeed

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/reflex/internal/avoidance"
)

func TestParseLine(t *testing.T) {
	front := avoidance.Front

	tests := []struct {
		name   string
		line   string
		fixed  *avoidance.Sensor
		want   Reading
		wantOK bool
	}{
		{"csv full name", "front,0.42", nil, Reading{avoidance.Front, 0.42}, true},
		{"csv letter", "L, 1.5 ", nil, Reading{avoidance.Left, 1.5}, true},
		{"csv negative kept", "right,-0.1", nil, Reading{avoidance.Right, -0.1}, true},
		{"json", `{"sensor":"right","range":0.25}`, nil, Reading{avoidance.Right, 0.25}, true},
		{"json within max", `{"sensor":"left","range":0.5,"max_range":0.8}`, nil, Reading{avoidance.Left, 0.5}, true},
		{"json at max", `{"sensor":"left","range":0.8,"max_range":0.8}`, nil, Reading{avoidance.Left, 0.8}, true},
		{"bare value on dedicated port", "0.3", &front, Reading{avoidance.Front, 0.3}, true},
		{"json without sensor on dedicated port", `{"range":0.2}`, &front, Reading{avoidance.Front, 0.2}, true},
		{"csv matching dedicated port", "f,0.9", &front, Reading{avoidance.Front, 0.9}, true},

		{"bare value on shared port", "0.3", nil, Reading{}, false},
		{"unknown sensor", "rear,0.3", nil, Reading{}, false},
		{"bad number", "front,abc", nil, Reading{}, false},
		{"too many fields", "front,0.3,0.4", nil, Reading{}, false},
		{"bad json", `{"sensor":`, nil, Reading{}, false},
		{"json without sensor on shared port", `{"range":0.2}`, nil, Reading{}, false},
		{"csv for another sensor on dedicated port", "left,0.9", &front, Reading{}, false},
		{"json for another sensor on dedicated port", `{"sensor":"left","range":0.9}`, &front, Reading{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, tt.fixed)
			if !tt.wantOK {
				if err == nil {
					t.Fatalf("ParseLine(%q) = %+v, want error", tt.line, got)
				}
				if errors.Is(err, ErrSkip) {
					t.Fatalf("ParseLine(%q) skipped, want a parse error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine(%q): %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLine_Skips(t *testing.T) {
	for _, line := range []string{"", "   ", "# sensor board v2", `{"status":"ok"}`} {
		if _, err := ParseLine(line, nil); !errors.Is(err, ErrSkip) {
			t.Errorf("ParseLine(%q) error = %v, want ErrSkip", line, err)
		}
	}
}

func TestParseLine_SpecialValues(t *testing.T) {
	r, err := ParseLine(`{"sensor":"front","range":5,"max_range":2}`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(r.Distance, 1) {
		t.Errorf("out of range distance = %v, want +Inf", r.Distance)
	}

	r, err = ParseLine("front,inf", nil)
	if err != nil || !math.IsInf(r.Distance, 1) {
		t.Errorf("front,inf = %v, %v", r.Distance, err)
	}

	r, err = ParseLine("front,NaN", nil)
	if err != nil || !math.IsNaN(r.Distance) {
		t.Errorf("front,NaN = %v, %v", r.Distance, err)
	}
}
