package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KIT-MAMID/benchfleet/automation"
	clocktesting "k8s.io/utils/clock/testing"
)

type fakeProcess struct {
	pid int

	alive bool
	// stubborn processes ignore termination requests
	stubborn bool
	// unkillable processes fail Kill
	unkillable bool

	terminateRequests int
	killed            bool
}

func (p *fakeProcess) Pid() int    { return p.pid }
func (p *fakeProcess) Alive() bool { return p.alive }

func (p *fakeProcess) Terminate() error {
	p.terminateRequests++
	if !p.stubborn {
		p.alive = false
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	if p.unkillable {
		return errors.New("operation not permitted")
	}
	p.alive = false
	p.killed = true
	return nil
}

type fakeProcessTable struct {
	procs   map[int]*fakeProcess
	nextPID int
}

func newFakeProcessTable() *fakeProcessTable {
	return &fakeProcessTable{procs: make(map[int]*fakeProcess), nextPID: 1000}
}

func (t *fakeProcessTable) Find(pid int) (Process, bool) {
	p, exists := t.procs[pid]
	if !exists || !p.alive {
		return nil, false
	}
	return p, true
}

func (t *fakeProcessTable) spawn() *fakeProcess {
	t.nextPID++
	p := &fakeProcess{pid: t.nextPID, alive: true}
	t.procs[p.pid] = p
	return p
}

func (t *fakeProcessTable) living() []*fakeProcess {
	var living []*fakeProcess
	for _, p := range t.procs {
		if p.alive {
			living = append(living, p)
		}
	}
	return living
}

func writeMarker(dir, name string, pid int) string {
	path := automation.PIDFilePath(dir, name)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		panic(err)
	}
	return path
}

// fakeStatusChecker reports primary from the primaryAfter-th query on.
type fakeStatusChecker struct {
	primaryAfter int
	setName      string
	queries      []automation.Endpoint
}

func (c *fakeStatusChecker) Status(endpoint automation.Endpoint) (NodeStatus, error) {
	c.queries = append(c.queries, endpoint)
	if c.primaryAfter < 0 || len(c.queries) < c.primaryAfter {
		return NodeStatus{}, errors.New("connection refused")
	}
	return NodeStatus{IsPrimary: true, ReplicaSetName: c.setName}, nil
}

// simulatedAgent plays the automation agent: whenever the orchestrator sleeps
// it applies the document at configPath, spawning enabled processes and
// stopping disabled ones. Spawned processes write the pid marker, data
// directory and log file their options ask for.
type simulatedAgent struct {
	*clocktesting.FakeClock

	running    bool
	configPath string
	table      *fakeProcessTable
	byName     map[string]*fakeProcess
	applied    []int64
}

func newSimulatedAgent(configPath string) *simulatedAgent {
	return &simulatedAgent{
		FakeClock:  clocktesting.NewFakeClock(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)),
		running:    true,
		configPath: configPath,
		table:      newFakeProcessTable(),
		byName:     make(map[string]*fakeProcess),
	}
}

func (a *simulatedAgent) Running() (bool, error) {
	return a.running, nil
}

func (a *simulatedAgent) Sleep(d time.Duration) {
	a.apply()
	a.FakeClock.Sleep(d)
}

func (a *simulatedAgent) apply() {
	doc, err := automation.ReadDocument(a.configPath)
	if err != nil {
		return
	}
	if n := len(a.applied); n > 0 && a.applied[n-1] == doc.Version {
		return
	}
	a.applied = append(a.applied, doc.Version)

	for _, p := range doc.Processes {
		proc := a.byName[p.Name]
		if p.Disabled {
			if proc != nil {
				// mongod leaves its pid file behind when it is stopped
				proc.alive = false
			}
			continue
		}
		if proc != nil && proc.alive {
			continue
		}
		proc = a.table.spawn()
		a.byName[p.Name] = proc
		if pidPath := p.PIDFilePath(); pidPath != "" {
			if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", proc.pid)), 0644); err != nil {
				panic(err)
			}
		}
		if dbPath := p.DBPath(); dbPath != "" {
			if err := os.MkdirAll(dbPath, 0755); err != nil {
				panic(err)
			}
			if err := os.WriteFile(filepath.Join(dbPath, "WiredTiger"), []byte("data"), 0644); err != nil {
				panic(err)
			}
		}
		if logPath := p.LogPath(); logPath != "" {
			if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
				panic(err)
			}
			if err := os.WriteFile(logPath, []byte("log"), 0644); err != nil {
				panic(err)
			}
		}
	}
}
