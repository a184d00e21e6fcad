package reusedist

// treap is an order-statistics tree of distinct uint64 keys.
//
// Each node carries the size of its subtree, so rank queries ("how many
// keys are greater than k") run in O(log n) expected time. Priorities come
// from a xorshift generator seeded per tree, which keeps runs reproducible.
//
// Thread Safety: NOT safe for concurrent use.
type treap struct {
	root *tnode
	rng  uint64
}

type tnode struct {
	left, right *tnode
	key         uint64
	prio        uint64
	size        int
}

func newTreap() *treap {
	return &treap{rng: 0x9e3779b97f4a7c15}
}

func (t *treap) next() uint64 {
	x := t.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	t.rng = x
	return x
}

func size(n *tnode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *tnode) fix() {
	n.size = 1 + size(n.left) + size(n.right)
}

// Len returns the number of keys.
func (t *treap) Len() int {
	return size(t.root)
}

// split divides n into keys < k and keys >= k.
func split(n *tnode, k uint64) (l, r *tnode) {
	if n == nil {
		return nil, nil
	}
	if n.key < k {
		n.right, r = split(n.right, k)
		n.fix()
		return n, r
	}
	l, n.left = split(n.left, k)
	n.fix()
	return l, n
}

// merge joins l and r, where every key in l is smaller than every key in r.
func merge(l, r *tnode) *tnode {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	case l.prio > r.prio:
		l.right = merge(l.right, r)
		l.fix()
		return l
	default:
		r.left = merge(l, r.left)
		r.fix()
		return r
	}
}

// Insert adds k. Inserting a present key is a caller error and leaves
// a duplicate in the tree, so callers delete first.
func (t *treap) Insert(k uint64) {
	n := &tnode{key: k, prio: t.next(), size: 1}
	l, r := split(t.root, k)
	t.root = merge(merge(l, n), r)
}

// Delete removes k and reports whether it was present.
func (t *treap) Delete(k uint64) bool {
	l, r := split(t.root, k)
	mid, r := split(r, k+1)
	t.root = merge(l, r)
	return mid != nil
}

// CountGreater returns the number of keys strictly greater than k.
func (t *treap) CountGreater(k uint64) int {
	count := 0
	n := t.root
	for n != nil {
		if n.key > k {
			count += 1 + size(n.right)
			n = n.left
		} else {
			n = n.right
		}
	}
	return count
}

// Min returns the smallest key.
func (t *treap) Min() (uint64, bool) {
	n := t.root
	if n == nil {
		return 0, false
	}
	for n.left != nil {
		n = n.left
	}
	return n.key, true
}
