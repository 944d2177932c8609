// Package scheduler resumes suspended delay branches and fires schedule triggers.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
)

// MemoryQueue is an in-process ResumeQueue.
type MemoryQueue struct {
	mu   sync.Mutex
	refs []protocol.ResumeRef
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, ref protocol.ResumeRef) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.refs {
		if existing.ExecutionID == ref.ExecutionID && existing.SuspensionID == ref.SuspensionID {
			return nil
		}
	}

	q.refs = append(q.refs, ref)
	sort.SliceStable(q.refs, func(i, j int) bool {
		return q.refs[i].DueAt.Before(q.refs[j].DueAt)
	})

	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]protocol.ResumeRef, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(q.refs) && !q.refs[n].DueAt.After(now) && (limit <= 0 || n < limit) {
		n++
	}

	claimed := make([]protocol.ResumeRef, n)
	copy(claimed, q.refs[:n])
	q.refs = q.refs[n:]

	return claimed, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.refs), nil
}
