package console

import "sync"

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind NoticeKind
	Text string
}

const maxPendingNotices = 20

// Notices is the console's flash queue. Pending notices are shown on the
// next page render and then discarded. The oldest notice is dropped once
// the queue is full.
type Notices struct {
	mu      sync.Mutex
	pending []Notice
}

func (n *Notices) Success(text string) { n.push(Notice{Kind: NoticeSuccess, Text: text}) }

func (n *Notices) Error(text string) { n.push(Notice{Kind: NoticeError, Text: text}) }

func (n *Notices) push(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == maxPendingNotices {
		n.pending = n.pending[1:]
	}
	n.pending = append(n.pending, notice)
}

// Drain returns the pending notices and empties the queue.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}
