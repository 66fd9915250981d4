package wizard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_RunsInPostOrder(t *testing.T) {
	q := &Queue{}
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		q.Post(func() { got = append(got, i) })
	}

	assert.Equal(t, 5, q.Len())
	assert.Empty(t, got, "nothing runs before the tick")

	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PostDuringDrainWaitsForNextTick(t *testing.T) {
	q := &Queue{}
	ran := 0
	q.Post(func() {
		ran++
		q.Post(func() { ran++ })
	})

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 2, ran)
}

func TestQueue_ConcurrentPost(t *testing.T) {
	q := &Queue{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Post(func() {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, q.Drain())
}
