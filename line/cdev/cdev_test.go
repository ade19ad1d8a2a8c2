package cdev

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

func TestParseID(t *testing.T) {
	for _, tc := range []struct {
		id     string
		chip   string
		offset int
		bad    bool
	}{
		{id: "17", chip: DefaultChip, offset: 17},
		{id: "0", chip: DefaultChip, offset: 0},
		{id: "gpiochip1:4", chip: "gpiochip1", offset: 4},
		{id: "/dev/gpiochip2:27", chip: "/dev/gpiochip2", offset: 27},
		{id: "", bad: true},
		{id: "GPIO17", bad: true},
		{id: "gpiochip0:", bad: true},
		{id: ":4", bad: true},
		{id: "-3", bad: true},
	} {
		chip, offset, err := ParseID(tc.id, DefaultChip)
		if tc.bad {
			if !errors.Is(err, ErrBadID) {
				t.Errorf("ParseID(%q): want ErrBadID, got %v", tc.id, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseID(%q): %s", tc.id, err)
			continue
		}
		if chip != tc.chip || offset != tc.offset {
			t.Errorf("ParseID(%q): want (%s, %d), got (%s, %d)", tc.id, tc.chip, tc.offset, chip, offset)
		}
	}
}

func TestRequestMissingChip(t *testing.T) {
	p := New(WithChip("gpiochip-hcsr04-missing"), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := p.Output("4"); err == nil {
		t.Error("Output on a missing chip succeeded")
	}
	if _, err := p.Input("17"); err == nil {
		t.Error("Input on a missing chip succeeded")
	}
	if _, err := p.Input("x"); !errors.Is(err, ErrBadID) {
		t.Errorf("Input(%q): want ErrBadID, got %v", "x", err)
	}
}

func TestEventDispatch(t *testing.T) {
	in := &input{id: "17", log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	// Events arriving before Watch are dropped.
	in.event(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventRisingEdge})

	var calls int
	if err := in.Watch(func() { calls++ }); err != nil {
		t.Fatalf("Watch: %s", err)
	}
	in.event(gpiocdev.LineEvent{Offset: 17, Timestamp: time.Second, Type: gpiocdev.LineEventRisingEdge})
	in.event(gpiocdev.LineEvent{Offset: 17, Timestamp: time.Second + 150*time.Microsecond, Type: gpiocdev.LineEventFallingEdge})
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}
