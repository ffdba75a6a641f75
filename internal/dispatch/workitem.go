package dispatch

import (
	"sync"
	"time"
)

// workItem is either a *command or a kill.
type workItem interface {
	isWorkItem()
}

type command struct {
	Request
	key      string
	deadline time.Time
	reply    chan Result // capacity 1, written once by the worker
}

// kill is one message of a removal round. Every live worker consumes exactly
// one; those with an index of keep or more terminate.
type kill struct {
	keep  int
	round *sync.WaitGroup
}

func (*command) isWorkItem() {}
func (kill) isWorkItem()     {}
