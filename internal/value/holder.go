package value

import "sync/atomic"

// cell is the storage shared by holders. refs counts the holders pointing at it.
type cell struct {
	v    Value
	refs atomic.Int32
}

// Holder owns a value with clone-on-write semantics. Share hands out a second
// holder over the same storage; the first holder to ask for a Mutable view
// while the storage is shared gets a private copy instead.
//
// The zero Holder is empty.
type Holder struct {
	c *cell
}

// NewHolder takes ownership of v.
func NewHolder(v Value) Holder {
	if v == nil {
		return Holder{}
	}
	c := &cell{v: v}
	c.refs.Store(1)
	return Holder{c: c}
}

// IsEmpty reports whether the holder holds no value.
func (h Holder) IsEmpty() bool {
	return h.c == nil
}

// Get returns a read-only view of the value (nil when empty).
func (h Holder) Get() Value {
	if h.c == nil {
		return nil
	}
	return h.c.v
}

// Share returns a new holder over the same storage.
func (h Holder) Share() Holder {
	if h.c == nil {
		return Holder{}
	}
	h.c.refs.Add(1)
	return Holder{c: h.c}
}

// Shared reports whether another holder still references the storage.
func (h Holder) Shared() bool {
	return h.c != nil && h.c.refs.Load() > 1
}

// Mutable returns a value that may be edited in place. The holder detaches
// from shared storage first, so other holders never observe the edit.
func (h *Holder) Mutable() Value {
	if h.c == nil {
		return nil
	}
	if h.c.refs.Load() > 1 {
		private := &cell{v: h.c.v.Clone()}
		private.refs.Store(1)
		h.c.refs.Add(-1)
		h.c = private
	}
	return h.c.v
}

// Release drops the holder's reference and empties it.
func (h *Holder) Release() {
	if h.c == nil {
		return
	}
	h.c.refs.Add(-1)
	h.c = nil
}
