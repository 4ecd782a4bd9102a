package services

import "sync"

// Ticket identifies one acquisition of a PendingRequest
type Ticket uint64

// PendingRequest allows at most one outstanding request per flow.
//
// Release only clears the gate for the ticket that currently holds it, so a
// request abandoned by a reset cannot free the gate of a newer request when it
// finally completes.
type PendingRequest struct {
	mu     sync.Mutex
	seq    uint64
	holder Ticket
	active bool
}

// Acquire takes the gate. ok is false when another request is outstanding.
func (p *PendingRequest) Acquire() (ticket Ticket, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return 0, false
	}
	p.seq++
	p.holder = Ticket(p.seq)
	p.active = true
	return p.holder, true
}

// Release frees the gate if ticket still holds it. It reports whether it did.
func (p *PendingRequest) Release(ticket Ticket) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || p.holder != ticket {
		return false
	}
	p.active = false
	return true
}

// Abandon frees the gate without waiting for the outstanding request. The
// request keeps running; its later Release is ignored.
func (p *PendingRequest) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
}

// Active reports whether a request is outstanding
func (p *PendingRequest) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
