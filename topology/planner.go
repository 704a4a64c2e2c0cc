package topology

import (
	"sort"

	"github.com/KIT-MAMID/benchfleet/automation"
)

// Topology describes the cores available for pinning.
type Topology struct {
	// AffinityUsable is false if the host does not let us pin processes to cores.
	AffinityUsable bool
	// Nodes maps a socket (or NUMA node) id to its ordered core ids.
	Nodes map[int][]int
}

// NodeIDs returns the node ids in ascending order.
func (t Topology) NodeIDs() []int {
	ids := make([]int, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Plan partitions the cores of t into contiguous chunks for n processes.
//
// Every node serves n / len(nodes) processes, each getting
// len(cores) / processesPerNode of that node's cores. Both divisions
// truncate, so an uneven n yields fewer than n chunks and leftover cores stay
// unassigned. If there are fewer processes than nodes, each of the first n
// nodes serves one process.
func Plan(n int, t Topology) (usable bool, chunks [][]int, err error) {
	if !t.AffinityUsable {
		return false, nil, nil
	}
	nodes := t.NodeIDs()
	if len(nodes) == 0 || n < 1 {
		return false, nil, automation.NewError(automation.InsufficientCores, nil,
			"cannot plan %d processes on %d topology nodes", n, len(nodes))
	}

	processesPerNode := n / len(nodes)
	if processesPerNode == 0 {
		processesPerNode = 1
		nodes = nodes[:n]
	}

	for _, node := range nodes {
		cores := t.Nodes[node]
		coresPerProcess := len(cores) / processesPerNode
		if coresPerProcess < 1 {
			return false, nil, automation.NewError(automation.InsufficientCores, nil,
				"node %d has %d cores for %d processes", node, len(cores), processesPerNode)
		}
		for i := 0; i < processesPerNode; i++ {
			chunk := make([]int, coresPerProcess)
			copy(chunk, cores[i*coresPerProcess:(i+1)*coresPerProcess])
			chunks = append(chunks, chunk)
		}
	}
	return true, chunks, nil
}
