// Package clock abstrai o tempo para que a lógica dependente de relógio
// (período de estabilização de missão, varredura de rádio) seja testável.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock é a fonte de tempo injetada nos serviços
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real retorna o relógio do sistema
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FakeClock só avança quando Advance é chamado
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// Fake cria um relógio parado em initial
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

// Now retorna o instante atual do relógio falso
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After entrega no canal quando o relógio for avançado até now+d
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: c.now.Add(d), ch: ch})
	return ch
}

// Advance move o relógio e dispara os After vencidos, em ordem de vencimento
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due, pending []waiter
	for _, w := range c.waiters {
		if !w.at.After(now) {
			due = append(due, w)
		} else {
			pending = append(pending, w)
		}
	}
	c.waiters = pending
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, w := range due {
		w.ch <- now
	}
}

// Pending retorna o número de After aguardando
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// WaitForWaiters bloqueia até existirem pelo menos n After pendentes
func (c *FakeClock) WaitForWaiters(n int) {
	for c.Pending() < n {
		time.Sleep(time.Millisecond)
	}
}
