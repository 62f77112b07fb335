package closer

import (
	"errors"
	"sync"
)

var globalCloser = New()

// Add registers resources on the process-wide closer.
func Add(f ...func() error) {
	globalCloser.Add(f...)
}

func CloseAll() error {
	return globalCloser.CloseAll()
}

func Wait() {
	globalCloser.Wait()
}

// Closer releases resources in reverse order of registration, once.
type Closer struct {
	mu    sync.Mutex
	once  sync.Once
	done  chan struct{}
	funcs []func() error
	err   error
}

func New() *Closer {
	return &Closer{done: make(chan struct{})}
}

func (c *Closer) Add(f ...func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, f...)
}

// CloseAll runs every closer even when some fail and returns the joined errors.
// Later calls return the first result.
func (c *Closer) CloseAll() error {
	c.once.Do(func() {
		defer close(c.done)

		c.mu.Lock()
		funcs := c.funcs
		c.funcs = nil
		c.mu.Unlock()

		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i](); err != nil {
				errs = append(errs, err)
			}
		}
		c.err = errors.Join(errs...)
	})
	return c.err
}

// Wait blocks until CloseAll has finished.
func (c *Closer) Wait() {
	<-c.done
}
