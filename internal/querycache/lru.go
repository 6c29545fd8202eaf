package querycache

// node is an element of the recency list. It stores its key so the owning
// map entry can be dropped on eviction.
type node struct {
	key        Key
	prev, next *node
}

// recency is a doubly-linked list, most recently used at the head.
// It is not thread-safe; the shard lock guards it.
type recency struct {
	head, tail *node
	n          int
}

func (l *recency) pushFront(k Key) *node {
	nd := &node{key: k, next: l.head}
	if l.head != nil {
		l.head.prev = nd
	}
	l.head = nd
	if l.tail == nil {
		l.tail = nd
	}
	l.n++
	return nd
}

func (l *recency) touch(nd *node) {
	if nd == l.head {
		return
	}
	l.unlink(nd)
	nd.next = l.head
	if l.head != nil {
		l.head.prev = nd
	}
	l.head = nd
	if l.tail == nil {
		l.tail = nd
	}
	l.n++
}

// popBack removes the least recently used node.
func (l *recency) popBack() (Key, bool) {
	if l.tail == nil {
		return Key{}, false
	}
	nd := l.tail
	l.unlink(nd)
	return nd.key, true
}

func (l *recency) unlink(nd *node) {
	if nd.prev != nil {
		nd.prev.next = nd.next
	} else {
		l.head = nd.next
	}
	if nd.next != nil {
		nd.next.prev = nd.prev
	} else {
		l.tail = nd.prev
	}
	nd.prev, nd.next = nil, nil
	l.n--
}

func (l *recency) reset() {
	l.head, l.tail, l.n = nil, nil, 0
}
