package wizard

import "sync"

// Queue defers state writes to the next tick. Post is safe from any goroutine;
// tasks run in the order they were posted.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// Post appends fn to the queue.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs the pending tasks and returns how many ran.
// Tasks posted while draining wait for the next Drain.
func (q *Queue) Drain() int {
	tasks := q.take()
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

func (q *Queue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}
