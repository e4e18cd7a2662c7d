package logmux

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"
)

type nopCloserReader struct{ io.Reader }

func (nopCloserReader) Close() error { return nil }

func TestMultiplexerFansInAllSourcesWithLabels(t *testing.T) {
	m := NewMultiplexer()
	ctx := context.Background()

	m.Add(ctx, "web", nopCloserReader{strings.NewReader("line1\nline2\n")})
	m.Add(ctx, "worker#2", nopCloserReader{strings.NewReader("only line\n")})

	go m.CloseWhenDone()

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case l, ok := <-m.Lines():
			if !ok {
				sort.Strings(got)
				want := []string{"[web] line1", "[web] line2", "[worker#2] only line"}
				sort.Strings(want)
				if len(got) != len(want) {
					t.Fatalf("got %v, want %v", got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
					}
				}
				return
			}
			got = append(got, Prefix(l))
		case <-timeout:
			t.Fatal("timed out waiting for multiplexer to drain")
		}
	}
}

func TestPrefixFormat(t *testing.T) {
	if got, want := Prefix(Line{Label: "web", Text: "hi"}), "[web] hi"; got != want {
		t.Errorf("Prefix() = %q, want %q", got, want)
	}
}
