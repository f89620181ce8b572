// Package queue provides the bounded top-K heap used by the brute-force scan.
package queue

// Item is a scored row.
type Item struct {
	Row   uint32  // Row is the position of the scored record in the index.
	Score float64 // Score is the similarity; higher is better. Never NaN.
}

// Better reports whether a ranks ahead of b: higher score first, and for
// equal scores the lower row.
func Better(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Row < b.Row
}

// TopK keeps the k best items seen so far.
// It is a min-heap on rank, so the root is always the worst retained item.
// Value-based storage, no pointer indirection.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a TopK that retains at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of retained items.
func (q *TopK) Len() int { return len(q.items) }

// Worst returns the worst retained item.
func (q *TopK) Worst() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Offer considers item for retention and reports whether it was kept.
func (q *TopK) Offer(item Item) bool {
	if q.k == 0 {
		return false
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if !Better(item, q.items[0]) {
		return false
	}
	q.items[0] = item
	q.siftDown(0)
	return true
}

// Drain returns the retained items best-first and empties the queue.
func (q *TopK) Drain() []Item {
	out := make([]Item, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items[n-1] = Item{}
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root
}

// less orders the heap so the worst item sits at the root.
func (q *TopK) less(i, j int) bool {
	return Better(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
