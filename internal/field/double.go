package field

// Double is a double-buffered Field: two Fields of identical shape with
// alternating read and write roles. The pair is owned for the lifetime of the
// Double; Swap only toggles which index plays which role.
//
// Consumers must call Read and Write at dispatch time. A *Field obtained
// before a Swap refers to the other role afterwards.
type Double struct {
	pair [2]*Field
	read uint8
}

// NewDouble allocates both halves through alloc. The halves are labelled
// label+".0" and label+".1".
func NewDouble(alloc Allocator, label string, width, height, channels int) (*Double, error) {
	a, err := alloc.Alloc(label+".0", width, height, channels)
	if err != nil {
		return nil, err
	}
	b, err := alloc.Alloc(label+".1", width, height, channels)
	if err != nil {
		a.Release()
		return nil, err
	}
	return &Double{pair: [2]*Field{a, b}}, nil
}

// Read returns the Field passes sample from.
func (d *Double) Read() *Field { return d.pair[d.read] }

// Write returns the Field passes render into.
func (d *Double) Write() *Field { return d.pair[d.read^1] }

// Swap exchanges the read and write roles. Swap is its own inverse.
func (d *Double) Swap() { d.read ^= 1 }

// Width returns the grid width of both halves.
func (d *Double) Width() int { return d.pair[0].Width() }

// Height returns the grid height of both halves.
func (d *Double) Height() int { return d.pair[0].Height() }

// TexelSize returns the reciprocal grid dimensions.
func (d *Double) TexelSize() [2]float32 { return d.pair[0].TexelSize() }

// Format returns the storage format of both halves.
func (d *Double) Format() Format { return d.pair[0].Format() }

// Release frees both halves.
func (d *Double) Release() {
	if d == nil {
		return
	}
	d.pair[0].Release()
	d.pair[1].Release()
}
