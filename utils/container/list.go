// Package container provides the generic intrusive data structures shared
// by the simulation core: an ordered doubly-linked list (used for lane car
// queues) and a binary heap priority queue (used by the event kernel).
package container

import (
	"fmt"
	"log"
)

// Positioned is implemented by anything that can be ordered along a lane by
// a scalar position. car.Car satisfies it.
type Positioned interface {
	Pos() float64
}

// ListNode is a node of an ordered doubly-linked List. S is the node's
// ordering key (a car's position along its lane); Value is the payload;
// Extra carries auxiliary per-node bookkeeping (e.g. side-lane links).
type ListNode[T Positioned, E any] struct {
	parent     *List[T, E]
	prev, next *ListNode[T, E]
	S          float64
	Value      T
	Extra      E
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("ListNode{S:%v, Value:%+v}", n.S, n.Value)
}

// Prev returns the previous (lower-S) node, or nil if n is the first.
func (n *ListNode[T, E]) Prev() *ListNode[T, E] { return n.prev }

// Next returns the next (higher-S) node, or nil if n is the last.
func (n *ListNode[T, E]) Next() *ListNode[T, E] { return n.next }

// Parent returns the list n belongs to.
func (n *ListNode[T, E]) Parent() *List[T, E] { return n.parent }

// InsertBefore inserts add immediately before n.
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("container: insert node that is already in a list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter inserts add immediately after n.
func (n *ListNode[T, E]) InsertAfter(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("container: insert node that is already in a list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List is a generic doubly-linked list kept ordered by each node's S field
// (ascending from head to tail). It never sorts automatically: callers are
// responsible for inserting at the correct point, or for calling
// PopUnsorted/Merge to repair ordering after a bulk position change.
type List[T Positioned, E any] struct {
	ID         string
	head, tail *ListNode[T, E]
	length     int
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v, Len:%d}", l.ID, l.length)
}

// Keys returns every node's S value in list order.
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, l.length)
	for i, node := 0, l.head; node != nil; node = node.next {
		keys[i] = node.S
		i++
	}
	return keys
}

// Values returns every node's Value in list order.
func (l *List[T, E]) Values() []T {
	values := make([]T, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		values[i] = node.Value
	}
	return values
}

// Len returns the number of nodes in the list.
func (l *List[T, E]) Len() int { return l.length }

// PushFront inserts add at the head of the list, regardless of S.
func (l *List[T, E]) PushFront(add *ListNode[T, E]) {
	add.next = nil
	add.prev = nil
	if l.head == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		l.head.InsertBefore(add)
		l.head = add
	}
}

// PushBack inserts add at the tail of the list, regardless of S.
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		l.tail.InsertAfter(add)
		l.tail = add
	}
}

// Remove detaches node from the list.
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panic("container: remove node from a list it does not belong to")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// First returns the lowest-S node, or nil if the list is empty.
func (l *List[T, E]) First() *ListNode[T, E] { return l.head }

// Last returns the highest-S node, or nil if the list is empty.
func (l *List[T, E]) Last() *ListNode[T, E] { return l.tail }

// InsertSorted creates a node for value at key s and inserts it at the
// position that keeps the list ascending by S, scanning from the tail
// since callers overwhelmingly insert near the end (a car entering a
// lane at position 0, or appending near the current maximum).
func (l *List[T, E]) InsertSorted(s float64, value T) *ListNode[T, E] {
	node := &ListNode[T, E]{S: s, Value: value}
	if l.tail == nil || l.tail.S <= s {
		l.PushBack(node)
		return node
	}
	n := l.tail
	for n.prev != nil && n.prev.S > s {
		n = n.prev
	}
	n.InsertBefore(node)
	return node
}

// PopUnsorted removes and returns every node whose S is smaller than its
// predecessor's, repairing monotonicity (invariant I2). Nothing in the
// simulation core calls it: a lane change detaches the car and re-inserts
// it with InsertSorted.
func (l *List[T, E]) PopUnsorted() (unsorted []*ListNode[T, E]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge re-inserts previously-popped nodes at their correct position,
// restoring ascending S order.
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	for i := 0; i < len(adds)-1; i++ {
		for j := i + 1; j < len(adds); j++ {
			if adds[i].S > adds[j].S {
				adds[i], adds[j] = adds[j], adds[i]
			}
		}
	}
	node := l.head
	for _, add := range adds {
		for node != nil && node.S < add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}
