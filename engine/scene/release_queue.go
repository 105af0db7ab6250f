package scene

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

// releaseQueue holds scene-owned GPU resources whose nodes were removed while the device
// may still be reading them. Entries are released only after the device is known to be idle.
type releaseQueue struct {
	pending []backend.Releasable
	queued  map[backend.Releasable]struct{}

	pool    worker.DynamicWorkerPool
	workers int
	taskID  int
}

func newReleaseQueue(workers int) *releaseQueue {
	return &releaseQueue{
		queued:  make(map[backend.Releasable]struct{}),
		workers: max(workers, 1),
	}
}

func (q *releaseQueue) push(r backend.Releasable) {
	if r == nil {
		return
	}
	if _, ok := q.queued[r]; ok {
		return
	}
	q.queued[r] = struct{}{}
	q.pending = append(q.pending, r)
}

func (q *releaseQueue) Len() int {
	return len(q.pending)
}

// drain releases every pending resource, fanning the releases out over the worker pool
// and waiting for all of them.
//
// The device must be idle when drain is called.
func (q *releaseQueue) drain() int {
	if len(q.pending) == 0 {
		return 0
	}
	if q.pool == nil {
		q.pool = worker.NewDynamicWorkerPool(q.workers, 256, 1*time.Second)
	}

	var wg sync.WaitGroup
	released := 0
	for _, r := range q.pending {
		wg.Add(1)
		res := r
		id := q.taskID
		q.taskID++
		q.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				res.Release()
				return nil, nil
			},
		})
		released++
	}
	wg.Wait()

	clear(q.queued)
	q.pending = q.pending[:0]
	common.Logger().Debug("scene: released deferred resources", "count", released)
	return released
}
