package orchestrator

import (
	"fmt"
	"os"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/KIT-MAMID/benchfleet/composer"
	"github.com/sirupsen/logrus"
)

var driverLog = logrus.WithField("module", "driver")

// Driver resets the fleet: it stops whatever the current document runs,
// wipes the process data and starts a freshly composed document.
//
// Every step is a write of the whole document followed by a wait, because
// the agent applies documents asynchronously and reports back only through
// pid markers.
type Driver struct {
	Store        *automation.Store
	Composer     *composer.Composer
	Watcher      *Watcher
	Agent        AgentDetector
	Metrics      *Metrics
	TemplatePath string
	Params       composer.Params
}

// Result is what the benchmark driver needs to know about the started fleet.
type Result struct {
	// ReplicaSetName is empty for a fleet of standalone servers.
	ReplicaSetName string
	// BenchmarkCores is empty if processes were not pinned.
	BenchmarkCores []int
}

// Run stops the fleet and, unless shutdownOnly is set, starts it from the template.
// Data and log files of stopped processes are deleted.
func (d *Driver) Run(shutdownOnly bool) (Result, error) {
	running, err := d.Agent.Running()
	if err != nil {
		return Result{}, fmt.Errorf("could not check for the automation agent: %w", err)
	}
	if !running {
		return Result{}, automation.NewError(automation.AgentNotRunning, nil, "the automation agent is not running on this host")
	}

	exists, err := d.Store.Exists()
	if err != nil {
		return Result{}, fmt.Errorf("could not stat document `%s`: %w", d.Store.Path, err)
	}
	if exists {
		current, err := d.Store.Read()
		if err != nil {
			return Result{}, err
		}
		d.Store.Versioner.InitFrom(current)
		if err := d.stop(current); err != nil {
			return Result{}, err
		}
	} else {
		driverLog.Infof("no document at `%s`, nothing to stop", d.Store.Path)
		d.Store.Versioner.InitFrom(nil)
		if err := ensurePIDDir(d.Watcher.PIDDir); err != nil {
			return Result{}, err
		}
	}

	if shutdownOnly {
		return Result{}, nil
	}
	return d.start()
}

func (d *Driver) stop(doc *automation.Document) error {
	driverLog.Info("stopping fleet")
	doc.SetDisabled(true)
	if err := d.persist(doc); err != nil {
		return err
	}
	if err := d.Watcher.WaitForShutdown(); err != nil {
		return err
	}

	for _, p := range doc.ManagedProcesses() {
		if err := removeProcessData(p); err != nil {
			return err
		}
	}
	return ensurePIDDir(d.Watcher.PIDDir)
}

// removeProcessData is destructive: process state does not survive a run.
func removeProcessData(p *automation.Process) error {
	if dbPath := p.DBPath(); dbPath != "" {
		driverLog.Debugf("removing data directory `%s` of `%s`", dbPath, p.Name)
		if err := os.RemoveAll(dbPath); err != nil {
			return fmt.Errorf("could not remove data directory of `%s`: %w", p.Name, err)
		}
	}
	if logPath := p.LogPath(); logPath != "" {
		if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not remove log file of `%s`: %w", p.Name, err)
		}
	}
	return nil
}

func (d *Driver) start() (Result, error) {
	driverLog.Info("starting fleet")
	template, err := automation.ReadDocument(d.TemplatePath)
	if err != nil {
		return Result{}, err
	}
	doc, benchmarkCores, err := d.Composer.Compose(template, d.Params)
	if err != nil {
		return Result{}, err
	}
	replicaSetName, err := automation.ReplicaSetName(doc)
	if err != nil {
		return Result{}, err
	}
	if replicaSetName != "" {
		if _, err := automation.PrimaryEndpoint(doc); err != nil {
			return Result{}, err
		}
	}

	doc.SetDisabled(false)
	if err := d.persist(doc); err != nil {
		return Result{}, err
	}
	if err := d.Watcher.WaitForStartup(doc); err != nil {
		return Result{}, err
	}
	if replicaSetName != "" {
		if err := d.Watcher.WaitForPrimary(doc, replicaSetName); err != nil {
			return Result{}, err
		}
	}

	return Result{ReplicaSetName: replicaSetName, BenchmarkCores: benchmarkCores}, nil
}

func (d *Driver) persist(doc *automation.Document) error {
	if err := d.Store.Write(doc); err != nil {
		return err
	}
	d.Metrics.setConfigVersion(doc.Version)
	driverLog.Infof("persisted document version %d", doc.Version)
	return nil
}
