package dispatch

import (
	"fmt"
	"time"

	"remotefs/internal/logger"
	"remotefs/internal/metrics"
	"remotefs/internal/shell"
)

// worker drives one Session from its flavor's queue until a kill round
// removes it.
type worker struct {
	index   int
	flavor  shell.Flavor
	session *shell.Session
	queue   <-chan workItem
}

func (w *worker) name() string { return fmt.Sprintf("%s-%d", w.flavor, w.index) }

func (w *worker) run() {
	logger.Log("worker", "%s started", w.name())
	metrics.WorkerStarted(string(w.flavor))
	defer metrics.WorkerStopped(string(w.flavor))

	for item := range w.queue {
		switch it := item.(type) {
		case kill:
			it.round.Done()
			if w.index >= it.keep {
				logger.Log("worker", "%s stopping", w.name())
				w.session.Close()
				return
			}
			// Hold on until every other worker has taken its message, so
			// no worker consumes two from the same round.
			it.round.Wait()
		case *command:
			w.execute(it)
		}
	}
}

func (w *worker) execute(c *command) {
	start := time.Now()
	res := Result{
		Key:     c.key,
		Flavor:  w.flavor,
		Server:  c.Server.Name,
		Command: c.Command,
		Marker:  c.Marker,
	}

	if !c.DropResult && time.Now().After(c.deadline) {
		// Nobody is waiting any more.
		res.Cause = shell.ErrTimeout
		w.publish(c, res)
		return
	}

	w.session.Bind(c.Server)
	w.session.SetDeadline(c.deadline)
	err := w.session.RunCommand(c.Command, c.Marker, c.Attempts, c.AcceptHostKey)
	w.session.SetDeadline(time.Time{})

	res.Success = err == nil
	res.Cause = err
	res.Out = w.session.Output()
	res.ErrOut = w.session.ErrOutput()
	res.HostKeyUnknown = w.session.HostKeyUnknown()
	res.LostConnection = w.session.LostConnection()
	res.Duration = time.Since(start)

	metrics.RecordCommand(string(w.flavor), res.Success, res.Duration)
	metrics.RecordReconnects(string(w.flavor), res.LostConnection)
	if err != nil {
		logger.Error("worker", "%s: %q on %s failed: %v", w.name(), c.Command, c.Server.Name, err)
	} else {
		logger.Log("worker", "%s: %q on %s done in %s", w.name(), c.Command, c.Server.Name, res.Duration)
	}

	if c.DropResult {
		return
	}
	w.publish(c, res)
}

func (w *worker) publish(c *command, res Result) {
	select {
	case c.reply <- res:
	default:
		logger.Error("worker", "%s: result %s already published", w.name(), c.key)
	}
}
