// Package intbuf provides a resizable int buffer used for index bookkeeping.
package intbuf

import (
	"fmt"
	"math"
)

const (
	// maxSize is the largest capacity the buffer will grow to. Some
	// allocators reserve header words near the top of the address space,
	// so the ceiling sits slightly below the int maximum.
	maxSize = math.MaxInt - 8

	// defaultCapacity is the capacity allocated on the first append to a
	// buffer created with NewList.
	defaultCapacity = 10
)

// List is a resizable int array with amortized O(1) append.
// The zero value is not usable; create instances with NewList or
// NewListCap. List is not safe for concurrent use.
type List struct {
	data     []int
	size     int
	deferCap bool
}

// NewList creates an empty list. The backing array is allocated lazily with
// the default capacity on the first append.
func NewList() *List {
	return &List{data: nil, deferCap: true}
}

// NewListCap creates an empty list with the given initial capacity.
func NewListCap(capacity int) *List {
	if capacity < 0 {
		panic(fmt.Sprintf("intbuf: illegal capacity: %d", capacity))
	}
	return &List{data: make([]int, capacity)}
}

// Get returns the element at the given index.
func (l *List) Get(index int) int {
	l.rangeCheck(index)
	return l.data[index]
}

// Add appends the element to the end of the list.
func (l *List) Add(element int) {
	l.ensureSize(l.size + 1)
	l.data[l.size] = element
	l.size++
}

// Insert inserts the element at the given index, shifting any subsequent
// elements to the right.
func (l *List) Insert(index, element int) {
	l.addRangeCheck(index)

	l.ensureSize(l.size + 1)
	copy(l.data[index+1:l.size+1], l.data[index:l.size])
	l.data[index] = element
	l.size++
}

// AddAll appends all elements to the end of the list and reports whether the
// list changed.
func (l *List) AddAll(elements []int) bool {
	count := len(elements)
	l.ensureSize(l.size + count)
	copy(l.data[l.size:], elements)
	l.size += count
	return count != 0
}

// InsertAll inserts all elements at the given index and reports whether the
// list changed.
func (l *List) InsertAll(index int, elements []int) bool {
	l.addRangeCheck(index)

	count := len(elements)
	l.ensureSize(l.size + count)

	if moved := l.size - index; moved > 0 {
		copy(l.data[index+count:l.size+count], l.data[index:l.size])
	}
	copy(l.data[index:], elements)
	l.size += count
	return count != 0
}

// Clear removes all elements. The backing array is retained.
func (l *List) Clear() {
	l.size = 0
}

// TrimToSize shrinks the backing array to the current size.
func (l *List) TrimToSize() {
	if l.size < len(l.data) {
		trimmed := make([]int, l.size)
		copy(trimmed, l.data)
		l.data = trimmed
	}
}

// Size returns the number of elements in the list.
func (l *List) Size() int {
	return l.size
}

// IsEmpty reports whether the list contains no elements.
func (l *List) IsEmpty() bool {
	return l.size == 0
}

// ForEach calls action for every element in order.
func (l *List) ForEach(action func(int)) {
	for i := 0; i < l.size; i++ {
		action(l.data[i])
	}
}

// Slice returns a copy of the current elements.
func (l *List) Slice() []int {
	out := make([]int, l.size)
	copy(out, l.data)
	return out
}

func (l *List) ensureSize(size int) {
	if l.deferCap && l.data == nil {
		if size < defaultCapacity {
			l.data = make([]int, defaultCapacity)
			return
		}
	}
	if size > len(l.data) {
		l.grow(size)
	}
}

func (l *List) rangeCheck(index int) {
	if index < 0 || index >= l.size {
		panic(fmt.Sprintf("intbuf: index %d out of range, size %d", index, l.size))
	}
}

func (l *List) addRangeCheck(index int) {
	if index < 0 || index > l.size {
		panic(fmt.Sprintf("intbuf: index %d out of range, size %d", index, l.size))
	}
}

// grow enlarges the backing array to hold at least size elements, growing by
// roughly 1.5x per step up to the capacity ceiling.
func (l *List) grow(size int) {
	if size < 0 {
		// int overflow while computing the requested size.
		panic("intbuf: size overflow")
	}

	oldCap := len(l.data)
	newCap := oldCap + oldCap>>1
	if newCap < size {
		newCap = size
	}
	if newCap > maxSize {
		if size > maxSize {
			panic("intbuf: buffer capacity ceiling exceeded")
		}
		newCap = maxSize
	}

	grown := make([]int, newCap)
	copy(grown, l.data[:l.size])
	l.data = grown
}
