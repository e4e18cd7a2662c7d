package healthcheck

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := map[string]struct {
		spec string
		want time.Duration
	}{
		"seconds":       {spec: "5s", want: 5 * time.Second},
		"minutes":       {spec: "2m", want: 2 * time.Minute},
		"hours":         {spec: "1h", want: time.Hour},
		"empty":         {spec: "", want: defaultDuration},
		"unknown unit":  {spec: "5x", want: defaultDuration},
		"malformed int": {spec: "xs", want: defaultDuration},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ParseDuration(test.spec); got != test.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", test.spec, got, test.want)
			}
		})
	}
}
