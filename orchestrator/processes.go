package orchestrator

import (
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Process is a handle on an OS process found through a pid marker.
type Process interface {
	Pid() int
	Alive() bool
	// Terminate asks the process to shut down cleanly.
	Terminate() error
	Kill() error
}

type ProcessTable interface {
	// Find returns a handle on pid. ok is false if no such process exists.
	Find(pid int) (p Process, ok bool)
}

// UnixProcessTable signals processes directly and consults procfs to tell
// exited-but-unreaped processes from running ones.
type UnixProcessTable struct {
	FS *procfs.FS
}

func NewUnixProcessTable() *UnixProcessTable {
	t := &UnixProcessTable{}
	if fs, err := procfs.NewDefaultFS(); err == nil {
		t.FS = &fs
	} else {
		watcherLog.Debugf("procfs unavailable, zombies will count as alive: %s", err)
	}
	return t
}

func (t *UnixProcessTable) Find(pid int) (Process, bool) {
	p := &unixProcess{pid: pid, table: t}
	if pid <= 0 || !p.Alive() {
		return nil, false
	}
	return p, true
}

type unixProcess struct {
	pid   int
	table *UnixProcessTable
}

func (p *unixProcess) Pid() int {
	return p.pid
}

func (p *unixProcess) Alive() bool {
	// EPERM: the process exists but belongs to someone else, e.g. the agent's user
	if err := unix.Kill(p.pid, 0); err != nil && err != unix.EPERM {
		return false
	}
	return !p.zombie()
}

func (p *unixProcess) zombie() bool {
	if p.table.FS == nil {
		return false
	}
	proc, err := p.table.FS.Proc(p.pid)
	if err != nil {
		return false
	}
	stat, err := proc.Stat()
	if err != nil {
		return false
	}
	return stat.State == "Z"
}

func (p *unixProcess) Terminate() error {
	return ignoreGone(unix.Kill(p.pid, unix.SIGTERM))
}

func (p *unixProcess) Kill() error {
	return ignoreGone(unix.Kill(p.pid, unix.SIGKILL))
}

func ignoreGone(err error) error {
	if err == unix.ESRCH {
		return nil
	}
	return err
}
