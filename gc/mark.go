package gc

import (
	"sync"
)

const (
	// markBatch is how many objects a worker takes from the shared queue.
	markBatch = 32
	// shareThreshold is the local stack depth above which a worker donates
	// half its stack to idle workers.
	shareThreshold = 64
)

// scan moves obj to Marked and traces its references.
func (ctx *Context) scan(obj *Object) {
	obj.state.Store(uint32(Marked))
	ctx.cache.Marked++
	ctx.scanFields(obj)
}

// scanFields traces obj's references without touching its mark state and
// records how many young objects it references.
func (ctx *Context) scanFields(obj *Object) {
	typ := obj.typ
	if !typ.HasPointers {
		return
	}
	ctx.scanning, ctx.youngSeen = obj, 0
	var reported uintptr
	if typ.Foreign != nil {
		ctx.cache.ForeignMarks++
		reported = typ.Foreign.Mark(ctx, obj)
	} else {
		for _, ref := range obj.refs[:typ.pointerWords] {
			ctx.Enqueue(ref)
		}
	}
	obj.youngRefs.Add(max(int64(reported), ctx.youngSeen))
	ctx.scanning, ctx.youngSeen = nil, 0
}

// drainLocal processes the local stack until it is empty, donating work to
// q whenever other workers are waiting.
func (ctx *Context) drainLocal(q *markQueue) {
	for len(ctx.stack) > 0 {
		n := len(ctx.stack) - 1
		obj := ctx.stack[n]
		ctx.stack[n] = nil
		ctx.stack = ctx.stack[:n]
		ctx.scan(obj)

		if len(ctx.stack) > shareThreshold && q.hungry() {
			half := len(ctx.stack) / 2
			q.push(ctx.stack[:half])
			ctx.stack = append(ctx.stack[:0], ctx.stack[half:]...)
		}
	}
}

// markQueue is the shared overflow queue between mark workers. The drain
// terminates when every worker is idle and the queue is empty.
type markQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*Object
	workers int
	idle    int
	done    bool
	failure any // first panic raised by a worker
}

func newMarkQueue(workers int) *markQueue {
	q := &markQueue{workers: workers}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *markQueue) push(objs []*Object) {
	if len(objs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, objs...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *markQueue) hungry() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle > 0 && len(q.items) == 0
}

// take moves up to markBatch objects onto dst. It blocks while the queue is
// empty and reports false once marking has terminated.
func (q *markQueue) take(dst []*Object) ([]*Object, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.done {
			return dst, false
		}
		q.idle++
		if q.idle == q.workers {
			q.done = true
			q.cond.Broadcast()
			return dst, false
		}
		q.cond.Wait()
		q.idle--
	}
	if q.done {
		return dst, false
	}
	n := min(len(q.items), markBatch)
	start := len(q.items) - n
	dst = append(dst, q.items[start:]...)
	clear(q.items[start:])
	q.items = q.items[:start]
	return dst, true
}

// abort stops every worker after a panic.
func (q *markQueue) abort(v any) {
	q.mu.Lock()
	if q.failure == nil {
		q.failure = v
	}
	q.done = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// run executes fn once per context, one goroutine per worker beyond the
// first, and waits for all of them. A panic in any worker is re-raised on
// the calling goroutine after the others have stopped.
func (q *markQueue) run(ctxs []*Context, fn func(ctx *Context)) {
	var wg sync.WaitGroup
	guarded := func(ctx *Context) {
		defer func() {
			if v := recover(); v != nil {
				q.abort(v)
			}
		}()
		fn(ctx)
	}
	for _, ctx := range ctxs[1:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guarded(ctx)
		}()
	}
	guarded(ctxs[0])
	wg.Wait()

	if q.failure != nil {
		panic(q.failure)
	}
}

// drain runs the parallel mark loop until no queued object remains.
func (q *markQueue) drain(ctxs []*Context) {
	q.run(ctxs, func(ctx *Context) {
		for {
			ctx.drainLocal(q)
			var ok bool
			ctx.stack, ok = q.take(ctx.stack)
			if !ok {
				return
			}
		}
	})
}
