package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/procfs"
)

const DefaultAgentName = "mongodb-mms-automation-agent"

// AgentDetector tells whether the supervising agent is running on this host.
type AgentDetector interface {
	Running() (bool, error)
}

// ProcfsAgentDetector looks for a process whose executable is named Name.
type ProcfsAgentDetector struct {
	FS   procfs.FS
	Name string
}

func NewProcfsAgentDetector(name string) (*ProcfsAgentDetector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("could not open procfs: %w", err)
	}
	return &ProcfsAgentDetector{FS: fs, Name: name}, nil
}

func (d *ProcfsAgentDetector) Running() (bool, error) {
	procs, err := d.FS.AllProcs()
	if err != nil {
		return false, fmt.Errorf("could not list processes: %w", err)
	}
	for _, p := range procs {
		if executableName(p) == d.Name {
			driverLog.Debugf("found agent `%s` with pid %d", d.Name, p.PID)
			return true, nil
		}
	}
	return false, nil
}

// executableName prefers argv[0] since comm is truncated to 15 characters.
func executableName(p procfs.Proc) string {
	if cmdline, err := p.CmdLine(); err == nil && len(cmdline) > 0 {
		return filepath.Base(cmdline[0])
	}
	comm, err := p.Comm()
	if err != nil {
		return ""
	}
	return comm
}
