package topology

import (
	"fmt"
	"sort"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var topologyLog = logrus.WithField("module", "topology")

// Host answers questions about the CPUs of the machine the fleet runs on.
type Host interface {
	Topology() (Topology, error)
}

// LinuxHost reads the CPU layout from procfs.
type LinuxHost struct {
	FS procfs.FS
}

func NewLinuxHost() (*LinuxHost, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("could not open procfs: %w", err)
	}
	return &LinuxHost{FS: fs}, nil
}

// Topology groups the logical processors we may run on by physical package.
// If the scheduler refuses to report our affinity mask, pinning is reported unusable.
func (h *LinuxHost) Topology() (Topology, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		topologyLog.Infof("cpu affinity not controllable on this host: %s", err)
		return Topology{AffinityUsable: false}, nil
	}

	cpus, err := h.FS.CPUInfo()
	if err != nil {
		return Topology{}, fmt.Errorf("could not read cpuinfo: %w", err)
	}
	t, err := topologyFromCPUInfo(cpus, func(processor int) bool { return mask.IsSet(processor) })
	if err != nil {
		return Topology{}, err
	}
	topologyLog.Debugf("cpu topology: %v", t.Nodes)
	return t, nil
}

func topologyFromCPUInfo(cpus []procfs.CPUInfo, allowed func(processor int) bool) (Topology, error) {
	nodes := make(map[int][]int)
	for _, cpu := range cpus {
		processor := int(cpu.Processor)
		if !allowed(processor) {
			continue
		}
		node := 0
		if cpu.PhysicalID != "" {
			if _, err := fmt.Sscanf(cpu.PhysicalID, "%d", &node); err != nil {
				return Topology{}, fmt.Errorf("unparsable physical id `%s` of processor %d", cpu.PhysicalID, processor)
			}
		}
		nodes[node] = append(nodes[node], processor)
	}
	for _, cores := range nodes {
		sort.Ints(cores)
	}
	return Topology{AffinityUsable: len(nodes) > 0, Nodes: nodes}, nil
}

// StaticHost reports a fixed topology.
type StaticHost struct {
	T Topology
}

func (h StaticHost) Topology() (Topology, error) {
	return h.T, nil
}
