package supervisor

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestFeedMessagesWellFormedLines(t *testing.T) {
	var got []any
	s := &Supervisor{
		log: zap.NewNop(),
		cfg: Config{
			OnChildMessage: func(c *Child, msg any) { got = append(got, msg) },
		},
	}
	c := &Child{Pid: 1}

	s.feedMessages(c, []byte("{\"a\":1}\n{\"b\":2}\n"))

	want := []any{
		map[string]any{"a": float64(1)},
		map[string]any{"b": float64(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestFeedMessagesPartialLineBuffersAcrossCalls(t *testing.T) {
	var got []any
	s := &Supervisor{
		log: zap.NewNop(),
		cfg: Config{
			OnChildMessage: func(c *Child, msg any) { got = append(got, msg) },
		},
	}
	c := &Child{Pid: 1}

	s.feedMessages(c, []byte(`{"partial":`))
	if len(got) != 0 {
		t.Fatalf("expected no callback before the line is complete, got %#v", got)
	}
	s.feedMessages(c, []byte("true}\n"))
	if len(got) != 1 {
		t.Fatalf("expected exactly one callback once the line completes, got %#v", got)
	}
}

// TestFeedMessagesMalformedLineDropped matches spec.md scenario S6: a
// malformed line is dropped silently, and well-formed lines around it
// still reach the callback.
func TestFeedMessagesMalformedLineDropped(t *testing.T) {
	var got []any
	s := &Supervisor{
		log: zap.NewNop(),
		cfg: Config{
			OnChildMessage: func(c *Child, msg any) { got = append(got, msg) },
		},
	}
	c := &Child{Pid: 1}

	s.feedMessages(c, []byte("bad\n{\"ok\":1}\n"))

	want := []any{map[string]any{"ok": float64(1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestFeedMessagesBlankLinesSkipped(t *testing.T) {
	var got []any
	s := &Supervisor{
		log: zap.NewNop(),
		cfg: Config{
			OnChildMessage: func(c *Child, msg any) { got = append(got, msg) },
		},
	}
	c := &Child{Pid: 1}

	s.feedMessages(c, []byte("\n   \n{\"x\":1}\n"))

	if len(got) != 1 {
		t.Fatalf("expected blank/whitespace lines to be skipped, got %#v", got)
	}
}
