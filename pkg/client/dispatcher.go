package client

import "sync"

type delivery struct {
	handler Handler
	event   Event
}

// dispatcher runs handlers on one goroutine in the order events were
// queued. The queue is unbounded so the notify call from the server
// never waits for a handler.
type dispatcher struct {
	mu      sync.Mutex
	queue   []delivery
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(h Handler, ev Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, delivery{handler: h, event: ev})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			next := d.queue[0]
			d.queue[0] = delivery{}
			d.queue = d.queue[1:]
			d.mu.Unlock()

			next.handler.Notify(next.event)
		}
	}
}

// stop delivers what is queued and waits for the goroutine to exit.
// It must not be called from a handler.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
}
