package main

import (
	"testing"

	"github.com/gogpu/gpucontext"
)

func types(events []gpucontext.PointerEvent) []gpucontext.PointerEventType {
	out := make([]gpucontext.PointerEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestPointerStateMouse(t *testing.T) {
	s := newPointerState()

	if got := s.update(mouseSample{x: 5, y: 5}, nil); len(got) != 0 {
		t.Errorf("hover produced %v", types(got))
	}

	steps := []struct {
		m    mouseSample
		want []gpucontext.PointerEventType
	}{
		{mouseSample{x: 10, y: 10, pressed: true}, []gpucontext.PointerEventType{gpucontext.PointerDown}},
		{mouseSample{x: 10, y: 10, pressed: true}, nil},
		{mouseSample{x: 12, y: 9, pressed: true}, []gpucontext.PointerEventType{gpucontext.PointerMove}},
		{mouseSample{x: 12, y: 9}, []gpucontext.PointerEventType{gpucontext.PointerUp}},
		{mouseSample{x: 20, y: 20}, nil},
	}
	for i, st := range steps {
		got := types(s.update(st.m, nil))
		if len(got) != len(st.want) {
			t.Fatalf("step %d: events = %v, want %v", i, got, st.want)
		}
		for j := range got {
			if got[j] != st.want[j] {
				t.Fatalf("step %d: events = %v, want %v", i, got, st.want)
			}
		}
	}
}

func TestPointerStateMouseEventFields(t *testing.T) {
	s := newPointerState()
	ev := s.update(mouseSample{x: 3, y: 4, pressed: true}, nil)[0]
	if ev.PointerType != gpucontext.PointerTypeMouse || ev.X != 3 || ev.Y != 4 || !ev.IsPrimary {
		t.Errorf("mouse down event = %+v", ev)
	}
}

func TestPointerStateTouches(t *testing.T) {
	s := newPointerState()

	got := s.update(mouseSample{}, []touchSample{{id: 2, x: 1, y: 1}, {id: 5, x: 9, y: 9}})
	if len(got) != 2 || got[0].Type != gpucontext.PointerDown || got[1].Type != gpucontext.PointerDown {
		t.Fatalf("touch down events = %v", types(got))
	}
	if got[0].PointerType != gpucontext.PointerTypeTouch || got[0].PointerID != 2 {
		t.Errorf("touch event = %+v", got[0])
	}

	got = s.update(mouseSample{}, []touchSample{{id: 2, x: 3, y: 1}, {id: 5, x: 9, y: 9}})
	if len(got) != 1 || got[0].Type != gpucontext.PointerMove || got[0].PointerID != 2 || got[0].X != 3 {
		t.Fatalf("touch move events = %+v", got)
	}

	got = s.update(mouseSample{}, []touchSample{{id: 5, x: 9, y: 9}})
	if len(got) != 1 || got[0].Type != gpucontext.PointerUp || got[0].PointerID != 2 || got[0].X != 3 {
		t.Fatalf("touch up events = %+v", got)
	}
	if len(s.touches) != 1 {
		t.Errorf("tracked touches = %d, want 1", len(s.touches))
	}
}
