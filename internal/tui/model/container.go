package model

// Keyed is implemented by rows that have an identity stable across
// refreshes.
type Keyed interface {
	Key() string
}

// Container is an ordered list of rows with an optional selection. The
// selection is remembered by key, so replacing the rows keeps the same
// logical row selected even when it moved.
type Container[T Keyed] struct {
	items       []T
	selected    string
	hasSelected bool
}

// NewContainer returns a container holding items with the first selected.
func NewContainer[T Keyed](items []T) Container[T] {
	var c Container[T]
	c.SetItems(items)
	return c
}

// SetItems replaces the rows. If the previously selected key is still
// present it stays selected, otherwise the first row (if any) is.
func (c *Container[T]) SetItems(items []T) {
	c.items = items
	if c.hasSelected && c.indexOf(c.selected) >= 0 {
		return
	}
	c.SelectFirst()
}

// Items returns the rows. The slice must not be modified.
func (c *Container[T]) Items() []T {
	return c.items
}

// Len returns the number of rows.
func (c *Container[T]) Len() int {
	return len(c.items)
}

// Selected returns the selected row.
func (c *Container[T]) Selected() (T, bool) {
	var zero T
	idx := c.Index()
	if idx < 0 {
		return zero, false
	}
	return c.items[idx], true
}

// Index returns the position of the selected row, or -1.
func (c *Container[T]) Index() int {
	if !c.hasSelected {
		return -1
	}
	return c.indexOf(c.selected)
}

// SelectNext moves the selection down one row, stopping at the last.
func (c *Container[T]) SelectNext() {
	c.Move(1)
}

// SelectPrevious moves the selection up one row, stopping at the first.
func (c *Container[T]) SelectPrevious() {
	c.Move(-1)
}

// Move shifts the selection by delta rows, clamped to the list bounds.
func (c *Container[T]) Move(delta int) {
	if len(c.items) == 0 {
		return
	}
	idx := c.Index()
	if idx < 0 {
		idx = 0
	} else {
		idx += delta
	}
	idx = max(0, min(idx, len(c.items)-1))
	c.selectIndex(idx)
}

// SelectFirst selects the first row, or clears the selection when empty.
func (c *Container[T]) SelectFirst() {
	if len(c.items) == 0 {
		c.selected, c.hasSelected = "", false
		return
	}
	c.selectIndex(0)
}

// SelectLast selects the last row.
func (c *Container[T]) SelectLast() {
	if len(c.items) == 0 {
		return
	}
	c.selectIndex(len(c.items) - 1)
}

// Select selects the row with key k. It reports false, leaving the
// selection untouched, when no such row exists.
func (c *Container[T]) Select(k string) bool {
	if c.indexOf(k) < 0 {
		return false
	}
	c.selected, c.hasSelected = k, true
	return true
}

// Find returns the row with key k.
func (c *Container[T]) Find(k string) (T, bool) {
	var zero T
	idx := c.indexOf(k)
	if idx < 0 {
		return zero, false
	}
	return c.items[idx], true
}

// Clone returns a copy that shares no backing array with c.
func (c *Container[T]) Clone() Container[T] {
	out := *c
	if c.items != nil {
		out.items = append([]T(nil), c.items...)
	}
	return out
}

// Update replaces the row with key k by fn(row). The rows are copied first
// so slices handed out by Items are not changed. It reports false when no
// such row exists.
func (c *Container[T]) Update(k string, fn func(T) T) bool {
	idx := c.indexOf(k)
	if idx < 0 {
		return false
	}
	items := append([]T(nil), c.items...)
	items[idx] = fn(items[idx])
	c.items = items
	if c.hasSelected && c.selected == k {
		c.selected = items[idx].Key()
	}
	return true
}

// Remove drops the row with key k. When it was selected, the row that
// takes its position (or the new last row) becomes selected.
func (c *Container[T]) Remove(k string) bool {
	idx := c.indexOf(k)
	if idx < 0 {
		return false
	}
	wasSelected := c.hasSelected && c.selected == k
	items := make([]T, 0, len(c.items)-1)
	items = append(items, c.items[:idx]...)
	items = append(items, c.items[idx+1:]...)
	c.items = items
	if !wasSelected {
		return true
	}
	if len(items) == 0 {
		c.selected, c.hasSelected = "", false
		return true
	}
	c.selectIndex(min(idx, len(items)-1))
	return true
}

func (c *Container[T]) selectIndex(i int) {
	c.selected, c.hasSelected = c.items[i].Key(), true
}

func (c *Container[T]) indexOf(k string) int {
	for i, it := range c.items {
		if it.Key() == k {
			return i
		}
	}
	return -1
}
