package host

import "iter"

// Cursor is the begin/is-end/next/get protocol of a backing collection H
// whose positions are C and whose elements are T. Every function is called
// with the World lock held. Next is never called once IsEnd reports true.
type Cursor[H, C, T any] struct {
	Begin func(H) C
	IsEnd func(H, C) bool
	Next  func(H, C) C
	Get   func(H, C) T
}

// Collection adapts a cursor protocol into a Go iterator.
//
// A collection is either owned by the caller, in which case Free releases the
// backing handle, or borrowed from the World or a parent, in which case Free
// does nothing. A nil Collection is empty.
type Collection[H, C, T any] struct {
	world  *World
	handle H
	cursor Cursor[H, C, T]
	owned  bool
	free   func(H)
	freed  bool
}

func newCollection[H, C, T any](w *World, handle H, cursor Cursor[H, C, T], owned bool, free func(H)) *Collection[H, C, T] {
	return &Collection[H, C, T]{
		world:  w,
		handle: handle,
		cursor: cursor,
		owned:  owned,
		free:   free,
	}
}

// All returns an iterator over the elements. The World lock is held for each
// cursor step and released before the element is yielded, so the loop body
// may call back into the World.
func (c *Collection[H, C, T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if c == nil || c.world == nil {
			return
		}
		mu := &c.world.mu

		mu.Lock()
		if c.freed {
			mu.Unlock()
			return
		}
		pos := c.cursor.Begin(c.handle)
		mu.Unlock()

		for {
			mu.Lock()
			if c.freed || c.cursor.IsEnd(c.handle, pos) {
				mu.Unlock()
				return
			}
			item := c.cursor.Get(c.handle, pos)
			pos = c.cursor.Next(c.handle, pos)
			mu.Unlock()

			if !yield(item) {
				return
			}
		}
	}
}

// Owned reports whether the caller is responsible for freeing c.
func (c *Collection[H, C, T]) Owned() bool {
	return c != nil && c.owned
}

// Free releases an owned collection. It is a no-op for borrowed collections
// and when called again.
func (c *Collection[H, C, T]) Free() {
	if c == nil || !c.owned || c.world == nil {
		return
	}
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if c.freed {
		return
	}
	c.freed = true
	if c.free != nil {
		c.free(c.handle)
	}
}

// withLock runs fn under the World lock unless c is nil or freed.
func (c *Collection[H, C, T]) withLock(fn func(H)) {
	if c == nil || c.world == nil {
		return
	}
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if !c.freed {
		fn(c.handle)
	}
}

// sliceCursor walks a slice returned by src, re-reading it at every step so
// that live tables reflect loads and unloads made during iteration.
func sliceCursor[E, T any](src func() []E, get func(E) T) Cursor[func() []E, int, T] {
	return Cursor[func() []E, int, T]{
		Begin: func(func() []E) int { return 0 },
		IsEnd: func(_ func() []E, i int) bool { return i >= len(src()) },
		Next:  func(_ func() []E, i int) int { return i + 1 },
		Get:   func(_ func() []E, i int) T { return get(src()[i]) },
	}
}
