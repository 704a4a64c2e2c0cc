package orchestrator

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var watcherLog = logrus.WithField("module", "watcher")

const (
	DefaultConvergenceTimeout = 30 * time.Second
	DefaultPollInterval       = 50 * time.Millisecond
	DefaultKillGracePeriod    = 60 * time.Second
)

const (
	phaseShutdown = "shutdown"
	phaseStartup  = "startup"
	phasePrimary  = "primary"
)

// Watcher polls for the fleet to reach the state the agent was asked for.
// Pid markers in PIDDir and process existence are the only signals available.
type Watcher struct {
	PIDDir    string
	Processes ProcessTable
	Status    StatusChecker
	Clock     clock.Clock
	Metrics   *Metrics

	Timeout         time.Duration
	PollInterval    time.Duration
	KillGracePeriod time.Duration
}

func NewWatcher(pidDir string, processes ProcessTable, status StatusChecker, clk clock.Clock) *Watcher {
	return &Watcher{
		PIDDir:          pidDir,
		Processes:       processes,
		Status:          status,
		Clock:           clk,
		Timeout:         DefaultConvergenceTimeout,
		PollInterval:    DefaultPollInterval,
		KillGracePeriod: DefaultKillGracePeriod,
	}
}

// WaitForShutdown waits for every process named by a pid marker to exit.
// Processes the agent does not stop within the timeout are terminated, then
// killed. All markers are removed afterwards, stale ones included.
func (w *Watcher) WaitForShutdown() error {
	start := w.Clock.Now()
	deadline := start.Add(w.Timeout)

	for {
		live, err := w.liveMarkedProcesses()
		if err != nil {
			return err
		}
		if len(live) == 0 {
			break
		}
		if !w.Clock.Now().Before(deadline) {
			watcherLog.Warnf("agent did not stop %d processes within %s, terminating them", len(live), w.Timeout)
			killed, failed := NewReaper(w.Clock, w.KillGracePeriod, w.PollInterval).Reap(live)
			w.Metrics.addKilled(len(killed))
			if len(failed) > 0 {
				if err := removePIDMarkers(w.PIDDir); err != nil {
					watcherLog.Errorf("could not remove pid markers: %s", err)
				}
				return automation.NewError(automation.ShutdownTimeout, nil, "could not kill pids %v", pids(failed))
			}
			break
		}
		w.Clock.Sleep(w.PollInterval)
	}

	if err := removePIDMarkers(w.PIDDir); err != nil {
		return err
	}
	w.Metrics.observeConvergence(phaseShutdown, w.Clock.Since(start))
	watcherLog.Infof("fleet stopped after %s", w.Clock.Since(start))
	return nil
}

func (w *Watcher) liveMarkedProcesses() ([]Process, error) {
	markers, err := scanPIDMarkers(w.PIDDir)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var live []Process
	for _, marker := range markers {
		pid, err := readPIDMarker(marker)
		if err != nil {
			watcherLog.Debugf("ignoring pid marker `%s`: %s", marker, err)
			continue
		}
		if seen[pid] {
			continue
		}
		seen[pid] = true
		if p, ok := w.Processes.Find(pid); ok && p.Alive() {
			live = append(live, p)
		}
	}
	return live, nil
}

// WaitForStartup waits until every enabled process of doc has a pid marker
// naming a live process.
func (w *Watcher) WaitForStartup(doc *automation.Document) error {
	start := w.Clock.Now()
	deadline := start.Add(w.Timeout)

	expected := make(map[string]string)
	for _, p := range doc.ManagedProcesses() {
		if !p.Disabled {
			expected[automation.PIDFilePath(w.PIDDir, p.Name)] = p.Name
		}
	}

	for {
		markers, err := scanPIDMarkers(w.PIDDir)
		if err != nil {
			return err
		}
		for _, marker := range markers {
			name, wanted := expected[marker]
			if !wanted {
				continue
			}
			pid, err := readPIDMarker(marker)
			switch {
			case errors.Is(err, errMarkerIncomplete) || errors.Is(err, fs.ErrNotExist):
				continue
			case err != nil:
				return automation.NewError(automation.ProcessFailedToStart, err, "process `%s` left an invalid pid marker", name)
			}
			if p, ok := w.Processes.Find(pid); !ok || !p.Alive() {
				return automation.NewError(automation.ProcessFailedToStart, nil,
					"pid marker `%s` of process `%s` names pid %d, which is not running", marker, name, pid)
			}
			watcherLog.Debugf("process `%s` is running with pid %d", name, pid)
			delete(expected, marker)
		}

		if len(expected) == 0 {
			w.Metrics.observeConvergence(phaseStartup, w.Clock.Since(start))
			watcherLog.Infof("fleet started after %s", w.Clock.Since(start))
			return nil
		}
		if !w.Clock.Now().Before(deadline) {
			return automation.NewError(automation.StartupTimeout, nil,
				"processes %v did not start within %s", names(expected), w.Timeout)
		}
		w.Clock.Sleep(w.PollInterval)
	}
}

// WaitForPrimary waits until the process designated for connections reports
// itself primary of a replica set.
func (w *Watcher) WaitForPrimary(doc *automation.Document, replicaSetName string) error {
	endpoint, err := automation.PrimaryEndpoint(doc)
	if err != nil {
		return err
	}

	start := w.Clock.Now()
	deadline := start.Add(w.Timeout)
	for {
		var status NodeStatus
		status, err = w.Status.Status(endpoint)
		if err != nil {
			watcherLog.Debugf("status of %s:%d not available yet: %s", endpoint.Hostname, endpoint.Port, err)
		} else if status.IsPrimary && status.ReplicaSetName != "" {
			w.Metrics.observeConvergence(phasePrimary, w.Clock.Since(start))
			watcherLog.Infof("%s:%d is primary of `%s` after %s", endpoint.Hostname, endpoint.Port, status.ReplicaSetName, w.Clock.Since(start))
			return nil
		}

		if !w.Clock.Now().Before(deadline) {
			return automation.NewError(automation.PrimaryElectionTimeout, err,
				"%s:%d did not become primary of `%s` within %s", endpoint.Hostname, endpoint.Port, replicaSetName, w.Timeout)
		}
		w.Clock.Sleep(w.PollInterval)
	}
}

func pids(procs []Process) []int {
	ids := make([]int, len(procs))
	for i, p := range procs {
		ids[i] = p.Pid()
	}
	return ids
}

func names(expected map[string]string) []string {
	var n []string
	for _, name := range expected {
		n = append(n, name)
	}
	sort.Strings(n)
	return n
}
