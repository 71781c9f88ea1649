package app

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay. The default implementation is
// time.AfterFunc; tests substitute a manual one.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WallScheduler schedules on the real clock.
func WallScheduler() Scheduler {
	return wallScheduler{}
}

// countdown drives one question's timer. Every arm or cancel bumps the token;
// a tick only counts if it presents the current token, so a tick already in
// flight when the phase changed is discarded. Callers hold the host lock.
type countdown struct {
	sched    Scheduler
	interval time.Duration
	token    uint64
	pending  Timer
}

func (c *countdown) arm(fire func(token uint64)) {
	c.cancel()
	c.schedule(c.token, fire)
}

func (c *countdown) schedule(token uint64, fire func(token uint64)) {
	c.pending = c.sched.AfterFunc(c.interval, func() { fire(token) })
}

func (c *countdown) cancel() {
	c.token++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *countdown) current(token uint64) bool {
	return token == c.token
}
