package transport

import (
	"bytes"
	"sync"
)

// Pipe returns two connected in-process ports. Messages are delivered
// asynchronously and in order on a goroutine owned by the receiving end.
func Pipe() (Port, Port) {
	a, b := newPipeEnd(), newPipeEnd()
	a.peer, b.peer = b, a
	return a, b
}

type pipeEnd struct {
	peer *pipeEnd

	mu      sync.Mutex
	queue   [][]byte
	handler func([]byte)

	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (p *pipeEnd) Post(msg []byte) error {
	select {
	case <-p.closed:
		return ErrClosed
	case <-p.peer.closed:
		return ErrClosed
	default:
	}
	p.peer.enqueue(bytes.Clone(msg))
	return nil
}

func (p *pipeEnd) Listen(handler func([]byte)) {
	p.mu.Lock()
	started := p.handler != nil
	p.handler = handler
	p.mu.Unlock()
	if !started {
		go p.run()
	}
	p.signal()
}

// Close shuts down both ends of the pipe.
func (p *pipeEnd) Close() error {
	p.shutdown()
	p.peer.shutdown()
	return nil
}

func (p *pipeEnd) shutdown() {
	p.once.Do(func() {
		close(p.closed)
	})
}

func (p *pipeEnd) enqueue(msg []byte) {
	p.mu.Lock()
	p.queue = append(p.queue, msg)
	p.mu.Unlock()
	p.signal()
}

func (p *pipeEnd) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pipeEnd) run() {
	for {
		select {
		case <-p.closed:
			return
		case <-p.wake:
		}
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			msg := p.queue[0]
			p.queue = p.queue[1:]
			handler := p.handler
			p.mu.Unlock()

			select {
			case <-p.closed:
				return
			default:
			}
			handler(msg)
		}
	}
}
