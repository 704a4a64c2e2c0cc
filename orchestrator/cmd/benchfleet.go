package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/KIT-MAMID/benchfleet/composer"
	"github.com/KIT-MAMID/benchfleet/orchestrator"
	"github.com/KIT-MAMID/benchfleet/topology"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var benchfleetLog = logrus.WithField("module", "benchfleet")

const statusTimeout = time.Second

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		dieOnError(err)
	}

	// stdout carries the environment for the benchmark driver
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(opts.LogLevel)

	result, err := run(opts)
	if err != nil {
		dieOnError(err)
	}
	writeEnv(os.Stdout, result)
}

func run(opts Options) (result orchestrator.Result, err error) {
	var host topology.Host
	if opts.NoAffinity {
		host = topology.StaticHost{T: topology.Topology{AffinityUsable: false}}
	} else if host, err = topology.NewLinuxHost(); err != nil {
		return result, err
	}

	agent, err := orchestrator.NewProcfsAgentDetector(opts.AgentName)
	if err != nil {
		return result, err
	}

	metrics := orchestrator.NewMetrics()
	if opts.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteToTextfile(opts.MetricsFile); werr != nil {
				benchfleetLog.Errorf("could not write metrics to `%s`: %s", opts.MetricsFile, werr)
			}
		}()
	}

	watcher := orchestrator.NewWatcher(
		opts.PIDDir,
		orchestrator.NewUnixProcessTable(),
		&orchestrator.MgoStatusChecker{Timeout: statusTimeout},
		clock.RealClock{},
	)
	watcher.Metrics = metrics

	driver := &orchestrator.Driver{
		Store:        automation.NewStore(opts.ConfigFile, &automation.Versioner{}),
		Composer:     composer.NewComposer(host),
		Watcher:      watcher,
		Agent:        agent,
		Metrics:      metrics,
		TemplatePath: opts.Template,
		Params:       opts.composerParams(),
	}
	return driver.Run(opts.Shutdown)
}

// writeEnv prints the result as shell variable assignments.
func writeEnv(w io.Writer, result orchestrator.Result) {
	if result.ReplicaSetName != "" {
		fmt.Fprintf(w, "REPLICA_SET=%s\n", result.ReplicaSetName)
	}
	if len(result.BenchmarkCores) > 0 {
		cores := make([]string, len(result.BenchmarkCores))
		for i, c := range result.BenchmarkCores {
			cores[i] = strconv.Itoa(c)
		}
		fmt.Fprintf(w, "BENCH_CPU_PREFIX=\"taskset -c %s\"\n", strings.Join(cores, ","))
		fmt.Fprintf(w, "BENCH_NUM_CORES=%d\n", len(result.BenchmarkCores))
	}
}

func dieOnError(err error) {
	fmt.Fprintf(os.Stderr, "benchfleet: %s\n", err)
	os.Exit(1)
}
