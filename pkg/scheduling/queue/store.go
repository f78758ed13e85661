package queue

import (
	"container/heap"
	"container/list"

	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// listStore keeps insertion order.
type listStore struct {
	items *list.List
	index map[*task.Task]*list.Element
}

func newListStore() *listStore {
	return &listStore{items: list.New(), index: make(map[*task.Task]*list.Element)}
}

func (s *listStore) push(t *task.Task) {
	s.index[t] = s.items.PushBack(t)
}

func (s *listStore) pop() *task.Task {
	front := s.items.Front()
	if front == nil {
		return nil
	}
	t := s.items.Remove(front).(*task.Task)
	delete(s.index, t)
	return t
}

func (s *listStore) oldest() *task.Task { return s.pop() }

func (s *listStore) remove(t *task.Task) bool {
	e, ok := s.index[t]
	if !ok {
		return false
	}
	s.items.Remove(e)
	delete(s.index, t)
	return true
}

func (s *listStore) len() int { return s.items.Len() }

// heapStore orders by task.Less, then by insertion sequence.
type heapStore struct {
	items taskHeap
	index map[*task.Task]*heapItem
	seq   uint64
}

type heapItem struct {
	t     *task.Task
	seq   uint64
	index int
}

type taskHeap []*heapItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if task.Less(h[i].t, h[j].t) {
		return true
	}
	if task.Less(h[j].t, h[i].t) {
		return false
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

func newHeapStore() *heapStore {
	return &heapStore{index: make(map[*task.Task]*heapItem)}
}

func (s *heapStore) push(t *task.Task) {
	item := &heapItem{t: t, seq: s.seq}
	s.seq++
	heap.Push(&s.items, item)
	s.index[t] = item
}

func (s *heapStore) pop() *task.Task {
	if len(s.items) == 0 {
		return nil
	}
	item := heap.Pop(&s.items).(*heapItem)
	delete(s.index, item.t)
	return item.t
}

// oldest removes the earliest inserted task regardless of its order.
func (s *heapStore) oldest() *task.Task {
	var first *heapItem
	for _, item := range s.items {
		if first == nil || item.seq < first.seq {
			first = item
		}
	}
	if first == nil {
		return nil
	}
	heap.Remove(&s.items, first.index)
	delete(s.index, first.t)
	return first.t
}

func (s *heapStore) remove(t *task.Task) bool {
	item, ok := s.index[t]
	if !ok {
		return false
	}
	heap.Remove(&s.items, item.index)
	delete(s.index, t)
	return true
}

func (s *heapStore) len() int { return len(s.items) }
