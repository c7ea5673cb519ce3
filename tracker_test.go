package fluid

import (
	"testing"

	"github.com/gogpu/gpucontext"
)

func pointer(typ gpucontext.PointerEventType, kind gpucontext.PointerType, id int, x, y float64) gpucontext.PointerEvent {
	return gpucontext.PointerEvent{Type: typ, PointerType: kind, PointerID: id, X: x, Y: y}
}

func TestTrackerMouseContact(t *testing.T) {
	red := [3]float32{1, 0, 0}
	tr := NewTracker(func() [3]float32 { return red })

	// PointerID of a mouse is ignored; it is always MouseID.
	tr.Handle(pointer(gpucontext.PointerDown, gpucontext.PointerTypeMouse, 1, 100, 50))
	if _, ok := tr.contacts[MouseID]; !ok {
		t.Fatal("mouse contact not tracked under MouseID")
	}
	if got := tr.Drain(200, 100); len(got) != 0 {
		t.Errorf("Drain before move = %v, want none", got)
	}

	tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypeMouse, 1, 104, 47))
	got := tr.Drain(200, 100)
	if len(got) != 1 {
		t.Fatalf("Drain() returned %d requests, want 1", len(got))
	}
	want := Splat{X: 104.0 / 200, Y: 1 - 47.0/100, DX: 40, DY: 30, Color: red}
	if got[0] != want {
		t.Errorf("request = %+v, want %+v", got[0], want)
	}

	if again := tr.Drain(200, 100); len(again) != 0 {
		t.Errorf("second Drain = %v, want none (moved flag cleared)", again)
	}

	tr.Handle(pointer(gpucontext.PointerUp, gpucontext.PointerTypeMouse, 1, 104, 47))
	if tr.Active() != 0 {
		t.Errorf("Active() after up = %d, want 0", tr.Active())
	}
}

func TestTrackerMoveWithoutDownIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypeMouse, 1, 10, 10))
	if tr.Active() != 0 || len(tr.Drain(10, 10)) != 0 {
		t.Error("hover move created a contact")
	}
}

func TestTrackerMultiTouch(t *testing.T) {
	tr := NewTracker(nil)
	tr.Handle(pointer(gpucontext.PointerDown, gpucontext.PointerTypeTouch, 7, 10, 10))
	tr.Handle(pointer(gpucontext.PointerDown, gpucontext.PointerTypeTouch, 3, 50, 50))
	tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypeTouch, 7, 11, 10))
	tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypeTouch, 3, 50, 52))
	tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypeTouch, 3, 50, 53))

	got := tr.Drain(100, 100)
	if len(got) != 2 {
		t.Fatalf("Drain() returned %d requests, want 2", len(got))
	}
	// Ordered by id: contact 3 first. Only its latest delta counts.
	if got[0].DX != 0 || got[0].DY != -10 {
		t.Errorf("contact 3 velocity = (%v, %v), want (0, -10)", got[0].DX, got[0].DY)
	}
	if got[1].DX != 10 || got[1].DY != 0 {
		t.Errorf("contact 7 velocity = (%v, %v), want (10, 0)", got[1].DX, got[1].DY)
	}
	if got[0].Color != [3]float32{1, 1, 1} {
		t.Errorf("default color = %v, want white", got[0].Color)
	}
}

func TestTrackerEndEvents(t *testing.T) {
	for _, end := range []gpucontext.PointerEventType{
		gpucontext.PointerUp,
		gpucontext.PointerCancel,
		gpucontext.PointerLeave,
	} {
		t.Run(end.String(), func(t *testing.T) {
			tr := NewTracker(nil)
			tr.Handle(pointer(gpucontext.PointerDown, gpucontext.PointerTypePen, 2, 5, 5))
			tr.Handle(pointer(gpucontext.PointerMove, gpucontext.PointerTypePen, 2, 6, 5))
			tr.Handle(pointer(end, gpucontext.PointerTypePen, 2, 6, 5))
			if tr.Active() != 0 {
				t.Errorf("Active() = %d, want 0", tr.Active())
			}
			if got := tr.Drain(10, 10); len(got) != 0 {
				t.Errorf("removed contact still injected %v", got)
			}
		})
	}
}

func TestTrackerZeroValue(t *testing.T) {
	var tr Tracker
	tr.Handle(pointer(gpucontext.PointerDown, gpucontext.PointerTypeMouse, 0, 1, 1))
	if tr.Active() != 1 {
		t.Errorf("Active() = %d, want 1", tr.Active())
	}
	if got := tr.Drain(0, 10); got != nil {
		t.Errorf("Drain on empty canvas = %v, want nil", got)
	}
}
