// Package queue provides the in-memory ready queue of todo tasks used to
// serve next-task claims.
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/karl-ai/corehub/internal/task/models"
)

// ErrTaskExists is returned when a task already exists in the queue
var ErrTaskExists = errors.New("task already exists in queue")

// QueuedTask represents a task in the ready queue
type QueuedTask struct {
	TaskID   string
	Priority int // 1 is most urgent
	QueuedAt time.Time
	Task     *models.Task
	index    int // Index in the heap (used by container/heap)
}

// taskHeap implements heap.Interface for the priority queue
type taskHeap []*QueuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	// Lower priority number first, then earlier queued time
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].QueuedAt.Before(h[j].QueuedAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*QueuedTask)
	item.index = n
	*h = append(*h, item)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// ReadyQueue manages the priority queue of claimable tasks
type ReadyQueue struct {
	mu      sync.RWMutex
	heap    taskHeap
	taskMap map[string]*QueuedTask // For quick lookup by task ID
}

// NewReadyQueue creates an empty ready queue
func NewReadyQueue() *ReadyQueue {
	q := &ReadyQueue{
		heap:    make(taskHeap, 0),
		taskMap: make(map[string]*QueuedTask),
	}
	heap.Init(&q.heap)
	return q
}

// Enqueue adds a task to the queue.
// Returns ErrTaskExists if the task is already queued.
func (q *ReadyQueue) Enqueue(task *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.taskMap[task.ID]; exists {
		return ErrTaskExists
	}

	qt := &QueuedTask{
		TaskID:   task.ID,
		Priority: task.Priority,
		QueuedAt: time.Now(),
		Task:     task,
	}

	heap.Push(&q.heap, qt)
	q.taskMap[task.ID] = qt
	return nil
}

// Dequeue removes and returns the most urgent task.
// Returns nil if the queue is empty.
func (q *ReadyQueue) Dequeue() *QueuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil
	}

	qt := heap.Pop(&q.heap).(*QueuedTask)
	delete(q.taskMap, qt.TaskID)
	return qt
}

// Peek returns the most urgent task without removing it
func (q *ReadyQueue) Peek() *QueuedTask {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// Remove removes a specific task from the queue
func (q *ReadyQueue) Remove(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	qt, exists := q.taskMap[taskID]
	if !exists {
		return false
	}

	heap.Remove(&q.heap, qt.index)
	delete(q.taskMap, taskID)
	return true
}

// UpdatePriority updates the priority of a task in the queue
func (q *ReadyQueue) UpdatePriority(taskID string, newPriority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	qt, exists := q.taskMap[taskID]
	if !exists {
		return false
	}

	qt.Priority = newPriority
	heap.Fix(&q.heap, qt.index)
	return true
}

// Contains checks if a task is in the queue
func (q *ReadyQueue) Contains(taskID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, exists := q.taskMap[taskID]
	return exists
}

// Len returns the number of tasks in the queue
func (q *ReadyQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.heap)
}

// List returns all queued tasks (for status endpoints)
func (q *ReadyQueue) List() []*QueuedTask {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*QueuedTask, len(q.heap))
	copy(result, q.heap)
	return result
}
