package services

import (
	"fmt"
	"log/slog"
)

type transferState int

const (
	stateValidating transferState = iota
	stateLocking
	stateApplying
	stateCommitted
	stateRejected
	stateRolledBack
)

func (s transferState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateLocking:
		return "locking"
	case stateApplying:
		return "applying"
	case stateCommitted:
		return "committed"
	case stateRejected:
		return "rejected"
	case stateRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("transferState(%d)", int(s))
}

var transferEdges = map[transferState][]transferState{
	stateValidating: {stateLocking, stateRejected},
	stateLocking:    {stateApplying, stateRolledBack},
	stateApplying:   {stateCommitted, stateRolledBack},
}

// transferFlow tracks one SendMoney call through its states. An illegal
// transition is a bug in the engine and panics.
type transferFlow struct {
	sender, receiver string
	state            transferState
}

func newTransferFlow(sender, receiver string) *transferFlow {
	return &transferFlow{sender: sender, receiver: receiver, state: stateValidating}
}

func (f *transferFlow) advance(next transferState) {
	for _, ok := range transferEdges[f.state] {
		if ok == next {
			slog.Debug("transfer state", "sender", f.sender, "receiver", f.receiver, "from", f.state, "to", next)
			f.state = next
			return
		}
	}
	panic(fmt.Sprintf("transfer: illegal transition %s -> %s", f.state, next))
}

// abort moves to whichever failure state is legal from here.
func (f *transferFlow) abort() {
	switch f.state {
	case stateValidating:
		f.advance(stateRejected)
	case stateLocking, stateApplying:
		f.advance(stateRolledBack)
	}
}
