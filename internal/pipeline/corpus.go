package pipeline

// Item is one cell of the corpus. Every stage adds one to Value.
type Item struct {
	Value int64
}

// Corpus owns the items of one run and the handles that travel through the
// queues.
type Corpus struct {
	items   []Item
	handles []*Item
}

// NewCorpus allocates n items initialised to 1.
func NewCorpus(n int) *Corpus {
	c := &Corpus{
		items:   make([]Item, n),
		handles: make([]*Item, n),
	}
	for i := range c.items {
		c.items[i].Value = 1
		c.handles[i] = &c.items[i]
	}
	return c
}

// Len returns the number of items.
func (c *Corpus) Len() int {
	return len(c.items)
}

// Handles returns the item handles in corpus order.
func (c *Corpus) Handles() []*Item {
	return c.handles
}

// Verify counts items whose value differs from want.
func (c *Corpus) Verify(want int64) int {
	errs := 0
	for i := range c.items {
		if c.items[i].Value != want {
			errs++
		}
	}
	return errs
}

// Sum returns the total of all values.
func (c *Corpus) Sum() int64 {
	var sum int64
	for i := range c.items {
		sum += c.items[i].Value
	}
	return sum
}

// Reset sets every value back to 1.
func (c *Corpus) Reset() {
	for i := range c.items {
		c.items[i].Value = 1
	}
}
