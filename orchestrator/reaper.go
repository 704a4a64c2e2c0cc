package orchestrator

import (
	"time"

	"k8s.io/utils/clock"
)

type reaperPhase int

const (
	reaperRequestTermination reaperPhase = iota
	reaperAwaitExit
	reaperForceKill
	reaperDone
)

func (p reaperPhase) String() string {
	switch p {
	case reaperRequestTermination:
		return "request-termination"
	case reaperAwaitExit:
		return "await-exit"
	case reaperForceKill:
		return "force-kill"
	case reaperDone:
		return "done"
	}
	return "unknown"
}

// Reaper stops processes the agent failed to stop: it asks them to terminate,
// gives them GracePeriod to exit and kills the survivors.
type Reaper struct {
	Clock        clock.Clock
	GracePeriod  time.Duration
	PollInterval time.Duration

	phase    reaperPhase
	alive    []Process
	deadline time.Time
	killed   []Process
	failed   []Process
}

func NewReaper(clk clock.Clock, gracePeriod, pollInterval time.Duration) *Reaper {
	return &Reaper{
		Clock:        clk,
		GracePeriod:  gracePeriod,
		PollInterval: pollInterval,
		phase:        reaperDone,
	}
}

// Reap runs the reaper to completion. It returns the processes that had to be
// killed and those that could not even be killed.
func (r *Reaper) Reap(procs []Process) (killed, failed []Process) {
	r.phase = reaperRequestTermination
	r.alive = procs
	r.killed, r.failed = nil, nil
	for r.phase != reaperDone {
		r.step()
	}
	return r.killed, r.failed
}

func (r *Reaper) step() {
	switch r.phase {
	case reaperRequestTermination:
		for _, p := range r.alive {
			if err := p.Terminate(); err != nil {
				watcherLog.Errorf("could not request termination of pid %d: %s", p.Pid(), err)
			}
		}
		r.deadline = r.Clock.Now().Add(r.GracePeriod)
		r.phase = reaperAwaitExit

	case reaperAwaitExit:
		r.alive = stillAlive(r.alive)
		switch {
		case len(r.alive) == 0:
			r.phase = reaperDone
		case !r.Clock.Now().Before(r.deadline):
			r.phase = reaperForceKill
		default:
			r.Clock.Sleep(r.PollInterval)
		}

	case reaperForceKill:
		for _, p := range r.alive {
			watcherLog.Warnf("pid %d still alive %s after termination request, killing", p.Pid(), r.GracePeriod)
			if err := p.Kill(); err != nil {
				watcherLog.Errorf("could not kill pid %d: %s", p.Pid(), err)
				r.failed = append(r.failed, p)
				continue
			}
			r.killed = append(r.killed, p)
		}
		r.alive = nil
		r.phase = reaperDone
	}
}

func stillAlive(procs []Process) []Process {
	var alive []Process
	for _, p := range procs {
		if p.Alive() {
			alive = append(alive, p)
		}
	}
	return alive
}
