package main

import (
	"slices"

	"github.com/gogpu/gpucontext"
)

// mouseSample is the mouse state of one frame.
type mouseSample struct {
	x, y    int
	pressed bool
}

// touchSample is one active touch of a frame.
type touchSample struct {
	id   int
	x, y int
}

type point struct{ x, y int }

// pointerState converts per-frame input samples into pointer events.
type pointerState struct {
	mouseDown bool
	mouse     point
	touches   map[int]point
}

func newPointerState() *pointerState {
	return &pointerState{touches: make(map[int]point)}
}

// update diffs this frame's samples against the previous frame and returns
// the resulting events: downs, then moves, then ups.
func (s *pointerState) update(m mouseSample, touches []touchSample) []gpucontext.PointerEvent {
	var events []gpucontext.PointerEvent

	mouseEvent := func(typ gpucontext.PointerEventType, p point) {
		events = append(events, gpucontext.PointerEvent{
			Type:        typ,
			PointerID:   1,
			PointerType: gpucontext.PointerTypeMouse,
			IsPrimary:   true,
			X:           float64(p.x),
			Y:           float64(p.y),
		})
	}
	cur := point{m.x, m.y}
	switch {
	case m.pressed && !s.mouseDown:
		mouseEvent(gpucontext.PointerDown, cur)
	case m.pressed && cur != s.mouse:
		mouseEvent(gpucontext.PointerMove, cur)
	case !m.pressed && s.mouseDown:
		mouseEvent(gpucontext.PointerUp, cur)
	}
	s.mouseDown, s.mouse = m.pressed, cur

	touchEvent := func(typ gpucontext.PointerEventType, id int, p point) {
		events = append(events, gpucontext.PointerEvent{
			Type:        typ,
			PointerID:   id,
			PointerType: gpucontext.PointerTypeTouch,
			X:           float64(p.x),
			Y:           float64(p.y),
		})
	}
	seen := make(map[int]bool, len(touches))
	for _, t := range touches {
		seen[t.id] = true
		p := point{t.x, t.y}
		prev, ok := s.touches[t.id]
		switch {
		case !ok:
			touchEvent(gpucontext.PointerDown, t.id, p)
		case prev != p:
			touchEvent(gpucontext.PointerMove, t.id, p)
		}
		s.touches[t.id] = p
	}
	var gone []int
	for id := range s.touches {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)
	for _, id := range gone {
		touchEvent(gpucontext.PointerUp, id, s.touches[id])
		delete(s.touches, id)
	}
	return events
}
