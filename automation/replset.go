package automation

// ReplicaSetName returns the name of the replica set the document describes,
// or "" if the fleet is not replicated.
//
// A primary-designating process with a replication section takes precedence
// over the replicaSets list. More than one candidate is an error.
func ReplicaSetName(doc *Document) (string, error) {
	var names []string
	for _, p := range doc.Processes {
		if !p.Primary {
			continue
		}
		if name := p.ReplSetName(); name != "" {
			names = append(names, name)
		}
	}
	switch {
	case len(names) == 1:
		return names[0], nil
	case len(names) > 1:
		return "", NewError(AmbiguousReplicaSet, nil, "%d processes designate a replica set name: %v", len(names), names)
	}

	switch len(doc.ReplicaSets) {
	case 0:
		return "", nil
	case 1:
		return doc.ReplicaSets[0].ID, nil
	default:
		ids := make([]string, len(doc.ReplicaSets))
		for i, rs := range doc.ReplicaSets {
			ids[i] = rs.ID
		}
		return "", NewError(AmbiguousReplicaSet, nil, "document lists %d replica sets: %v", len(ids), ids)
	}
}

type Endpoint struct {
	Hostname string
	Port     int
}

// PrimaryEndpoint returns the endpoint of the single process flagged connect-to.
func PrimaryEndpoint(doc *Document) (Endpoint, error) {
	var flagged []*Process
	for _, p := range doc.Processes {
		if p.ConnectTo {
			flagged = append(flagged, p)
		}
	}
	switch len(flagged) {
	case 0:
		return Endpoint{}, NewError(NoPrimaryDesignated, nil, "no process is flagged to connect to")
	case 1:
		return Endpoint{Hostname: flagged[0].HostnameOrDefault(), Port: flagged[0].Port()}, nil
	default:
		names := make([]string, len(flagged))
		for i, p := range flagged {
			names[i] = p.Name
		}
		return Endpoint{}, NewError(AmbiguousPrimary, nil, "%d processes are flagged to connect to: %v", len(names), names)
	}
}
