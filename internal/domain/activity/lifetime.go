package activity

import "sync"

// lifetime is a liveness token: continuations check it before touching the
// component that issued them.
type lifetime struct {
	once sync.Once
	done chan struct{}
}

func newLifetime() *lifetime {
	return &lifetime{done: make(chan struct{})}
}

func (l *lifetime) end() {
	l.once.Do(func() { close(l.done) })
}

func (l *lifetime) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *lifetime) Done() <-chan struct{} {
	return l.done
}
