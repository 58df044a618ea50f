package cacherefresh

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/gammazero/deque"
)

// task is a batch of distinct keys waiting to be invalidated.
type task struct {
	keys     []string
	attempts int             // retries spent; only singletons are retried
	retry    backoff.BackOff // created on the first singleton failure
}

// workQueue is a LIFO stack of tasks. Tasks pushed last are popped first, so
// halves of a bisected batch and requeued retries run before older pages.
type workQueue struct {
	tasks *deque.Deque[*task]
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{tasks: deque.New[*task](0, capacity)}
}

func (q *workQueue) push(t *task) { q.tasks.PushBack(t) }

func (q *workQueue) pop() *task { return q.tasks.PopBack() }

func (q *workQueue) len() int { return q.tasks.Len() }

// paginate cuts keys into consecutive pages of at most size keys.
func paginate(keys []string, size int) [][]string {
	pages := make([][]string, 0, (len(keys)+size-1)/size)
	for len(keys) > size {
		pages = append(pages, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		pages = append(pages, keys)
	}
	return pages
}

// bisect splits keys in two; the first half takes the extra key when the count is odd.
func bisect(keys []string) (first, second []string) {
	mid := (len(keys) + 1) / 2
	return keys[:mid:mid], keys[mid:]
}

// distinct drops repeated keys, keeping the first occurrence. It always
// returns a fresh slice.
func distinct(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
