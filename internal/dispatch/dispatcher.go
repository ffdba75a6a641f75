// Package dispatch runs remote commands on pools of long-lived ssh and sftp
// sessions and hands the results back to the submitter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"remotefs/internal/logger"
	"remotefs/internal/shell"
)

// ErrNoWorkers is returned when a request is submitted for a flavor whose
// pool has no workers.
var ErrNoWorkers = errors.New("no workers for flavor")

const (
	defaultListenAttempts = 20
	defaultTimeout        = 20 * time.Second
	defaultQueueSize      = 64
)

// Options configure a Dispatcher.
type Options struct {
	Session        shell.Options
	ListenAttempts int
	Timeout        time.Duration
	QueueSize      int
}

// Dispatcher owns one worker pool per flavor.
type Dispatcher struct {
	opts  Options
	pools map[shell.Flavor]*pool
	wg    sync.WaitGroup
}

type pool struct {
	flavor shell.Flavor
	queue  chan workItem
	mu     sync.Mutex // serialises AddWorker and kill rounds

	live    atomic.Int32 // workers not yet sent a terminating kill
	running atomic.Int32 // worker goroutines that have not exited
}

// New returns a dispatcher with empty pools.
func New(opts Options) *Dispatcher {
	if opts.ListenAttempts <= 0 {
		opts.ListenAttempts = defaultListenAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	d := &Dispatcher{opts: opts, pools: make(map[shell.Flavor]*pool)}
	for _, f := range []shell.Flavor{shell.FlavorSSH, shell.FlavorSFTP} {
		d.pools[f] = &pool{flavor: f, queue: make(chan workItem, opts.QueueSize)}
	}
	return d
}

// AddWorker starts a worker for flavor and returns its index.
func (d *Dispatcher) AddWorker(flavor shell.Flavor) int {
	p := d.pools[flavor]
	if p == nil {
		panic(fmt.Sprintf("dispatch: unknown flavor %q", flavor))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	w := &worker{
		index:   int(p.live.Load()),
		flavor:  flavor,
		session: shell.NewSession(flavor, d.opts.Session),
		queue:   p.queue,
	}
	p.live.Add(1)
	p.running.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer p.running.Add(-1)
		w.run()
	}()
	return w.index
}

// Workers returns the number of live workers for flavor.
func (d *Dispatcher) Workers(flavor shell.Flavor) int {
	p := d.pools[flavor]
	if p == nil {
		return 0
	}
	return int(p.live.Load())
}

// RemoveWorkers stops the n highest-indexed workers of flavor. Work queued
// before the call is finished first. It returns once every live worker has
// seen the removal, or when ctx ends; the round then completes in the
// background.
func (d *Dispatcher) RemoveWorkers(ctx context.Context, flavor shell.Flavor, n int) error {
	p := d.pools[flavor]
	if p == nil {
		return fmt.Errorf("%w: %q", ErrInvalidRequest, flavor)
	}
	p.mu.Lock()
	total := int(p.live.Load())
	if n > total {
		n = total
	}
	if n <= 0 {
		p.mu.Unlock()
		return nil
	}

	keep := total - n
	round := &sync.WaitGroup{}
	round.Add(total)
	p.live.Store(int32(keep))
	logger.Log("dispatch", "removing %d of %d %s workers", n, total, flavor)

	done := make(chan struct{})
	go func() {
		round.Wait()
		close(done)
		p.mu.Unlock()
	}()
	for i := 0; i < total; i++ {
		p.queue <- kill{keep: keep, round: round}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every worker and waits for them to exit.
func (d *Dispatcher) Close() {
	for flavor := range d.pools {
		_ = d.RemoveWorkers(context.Background(), flavor, d.Workers(flavor))
	}
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(ctx context.Context, req Request) (*command, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if d.Workers(req.Flavor) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoWorkers, req.Flavor)
	}
	if req.Attempts <= 0 {
		req.Attempts = d.opts.ListenAttempts
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = req.Server.Timeout
	}
	if timeout <= 0 {
		timeout = d.opts.Timeout
	}
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	c := &command{
		Request:  req,
		key:      newKey(req.Command),
		deadline: deadline,
		reply:    make(chan Result, 1),
	}
	select {
	case d.pools[req.Flavor].queue <- c:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit queues req and waits for its result until the request deadline.
// Remote failures, timeouts included, are reported through Result; the
// error is reserved for requests that could not be queued.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Result, error) {
	req.DropResult = false
	c, err := d.enqueue(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return c.await(ctx), nil
}

// SubmitAsync queues req and calls fn exactly once with the result and
// token, from a goroutine owned by the dispatcher. On expiry fn receives a
// failed Result whose Cause is shell.ErrTimeout.
func (d *Dispatcher) SubmitAsync(req Request, token any, fn func(Result, any)) error {
	req.DropResult = false
	c, err := d.enqueue(context.Background(), req)
	if err != nil {
		return err
	}
	go func() {
		fn(c.await(context.Background()), token)
	}()
	return nil
}

// Post queues req without waiting and without keeping its result. It
// returns the request key for log correlation.
func (d *Dispatcher) Post(ctx context.Context, req Request) (string, error) {
	req.DropResult = true
	c, err := d.enqueue(ctx, req)
	if err != nil {
		return "", err
	}
	return c.key, nil
}

func (c *command) await(ctx context.Context) Result {
	timer := time.NewTimer(time.Until(c.deadline))
	defer timer.Stop()

	failed := Result{
		Key:     c.key,
		Flavor:  c.Flavor,
		Server:  c.Server.Name,
		Command: c.Command,
		Marker:  c.Marker,
	}
	select {
	case res := <-c.reply:
		return res
	case <-timer.C:
		// The worker may still be about to publish.
		select {
		case res := <-c.reply:
			return res
		default:
		}
		failed.Cause = fmt.Errorf("%q on %s: %w", c.Command, c.Server.Name, shell.ErrTimeout)
		return failed
	case <-ctx.Done():
		failed.Cause = ctx.Err()
		return failed
	}
}
