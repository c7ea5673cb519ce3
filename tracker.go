package fluid

import (
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/fluid/internal/solver"
)

// Splat is one injection request: position in normalized grid coordinates
// (origin bottom-left), velocity delta and RGB color.
type Splat = solver.Splat

// MouseID is the contact id of the mouse. Touch and pen contacts use the
// event's pointer id.
const MouseID = -1

// deltaScale converts a pointer movement in screen pixels into a velocity.
const deltaScale = 10

type contact struct {
	x, y   float64
	dx, dy float64
	moved  bool
	color  [3]float32
}

// Tracker turns pointer events into injection requests. Each contact is
// tracked independently from down to up, cancel or leave.
//
// A Tracker is not safe for concurrent use; Simulation serializes access.
type Tracker struct {
	// Color returns the dye color of a new contact. Nil means white.
	Color func() [3]float32

	contacts map[int]*contact
}

// NewTracker returns a Tracker that colors new contacts with color.
func NewTracker(color func() [3]float32) *Tracker {
	return &Tracker{Color: color, contacts: make(map[int]*contact)}
}

func contactID(ev gpucontext.PointerEvent) int {
	if ev.PointerType == gpucontext.PointerTypeMouse {
		return MouseID
	}
	return ev.PointerID
}

// Handle records one pointer event. Events for contacts that are not down
// are ignored.
func (t *Tracker) Handle(ev gpucontext.PointerEvent) {
	if t.contacts == nil {
		t.contacts = make(map[int]*contact)
	}
	id := contactID(ev)
	switch ev.Type {
	case gpucontext.PointerDown:
		c := &contact{x: ev.X, y: ev.Y, color: [3]float32{1, 1, 1}}
		if t.Color != nil {
			c.color = t.Color()
		}
		t.contacts[id] = c
	case gpucontext.PointerMove:
		c, ok := t.contacts[id]
		if !ok {
			return
		}
		c.dx = (ev.X - c.x) * deltaScale
		c.dy = (ev.Y - c.y) * deltaScale
		c.x, c.y = ev.X, ev.Y
		c.moved = true
	case gpucontext.PointerUp, gpucontext.PointerCancel, gpucontext.PointerLeave:
		delete(t.contacts, id)
	}
}

// Active returns the number of contacts currently down.
func (t *Tracker) Active() int { return len(t.contacts) }

// Drain returns one request per moved contact for a canvas of
// width x height pixels and clears the moved flags. Requests are ordered by
// contact id.
func (t *Tracker) Drain(width, height int) []Splat {
	if width <= 0 || height <= 0 {
		return nil
	}
	ids := make([]int, 0, len(t.contacts))
	for id, c := range t.contacts {
		if c.moved {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	out := make([]Splat, 0, len(ids))
	for _, id := range ids {
		c := t.contacts[id]
		out = append(out, Splat{
			X:     float32(c.x / float64(width)),
			Y:     float32(1 - c.y/float64(height)),
			DX:    float32(c.dx),
			DY:    float32(-c.dy),
			Color: c.color,
		})
		c.moved = false
	}
	return out
}
