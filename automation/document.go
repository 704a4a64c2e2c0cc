package automation

import (
	"encoding/json"
	"fmt"
)

type ProcessType string

const ProcessTypeMongod ProcessType = "mongod"

const DefaultHostname = "localhost"

// Document is the desired-state document consumed by the automation agent.
type Document struct {
	Version         int64
	Processes       []*Process
	MongoDBVersions []MongoDBVersion
	Options         map[string]interface{}
	ReplicaSets     []ReplicaSet

	extra map[string]json.RawMessage
}

// Process is one managed server process.
type Process struct {
	Name        string
	ProcessType ProcessType
	Disabled    bool
	Hostname    string
	Version     string

	// Ignore excludes the process from every mutation and every wait.
	// An ignored process is written back exactly as it was read.
	Ignore bool
	// Primary marks the process whose replication section names the replica set.
	Primary bool
	// ConnectTo marks the process queried for primary status.
	ConnectTo bool

	Legacy *LegacyArgs // args2_4
	Nested *NestedArgs // args2_6

	extra map[string]json.RawMessage
	// raw is the process as decoded
	raw json.RawMessage
}

type MongoDBVersion struct {
	Name   string  `json:"name"`
	Builds []Build `json:"builds"`
}

type Build struct {
	Platform   string `json:"platform"`
	URL        string `json:"url"`
	GitVersion string `json:"gitVersion"`
	Bits       int    `json:"bits"`
}

type ReplicaSet struct {
	ID      string                   `json:"_id"`
	Members []map[string]interface{} `json:"members"`
}

type documentFields struct {
	Version         int64                  `json:"version"`
	Processes       []*Process             `json:"processes"`
	MongoDBVersions []MongoDBVersion       `json:"mongoDbVersions"`
	Options         map[string]interface{} `json:"options"`
	ReplicaSets     []ReplicaSet           `json:"replicaSets,omitempty"`
}

var documentKeys = []string{"version", "processes", "mongoDbVersions", "options", "replicaSets"}

type processFields struct {
	Name        string      `json:"name"`
	ProcessType ProcessType `json:"processType"`
	Disabled    bool        `json:"disabled"`
	Hostname    string      `json:"hostname,omitempty"`
	Version     string      `json:"version,omitempty"`
	Ignore      bool        `json:"benchIgnore,omitempty"`
	Primary     bool        `json:"benchPrimary,omitempty"`
	ConnectTo   bool        `json:"benchConnectTo,omitempty"`
	Legacy      *LegacyArgs `json:"args2_4,omitempty"`
	Nested      *NestedArgs `json:"args2_6,omitempty"`
}

var processKeys = []string{"name", "processType", "disabled", "hostname", "version",
	"benchIgnore", "benchPrimary", "benchConnectTo", "args2_4", "args2_6"}

func (d *Document) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}
	var f documentFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	for i, p := range f.Processes {
		if p == nil {
			return fmt.Errorf("process %d is null", i)
		}
	}
	*d = Document{
		Version:         f.Version,
		Processes:       f.Processes,
		MongoDBVersions: f.MongoDBVersions,
		Options:         f.Options,
		ReplicaSets:     f.ReplicaSets,
		extra:           unknownMembers(obj, documentKeys...),
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	f := documentFields{
		Version:         d.Version,
		Processes:       d.Processes,
		MongoDBVersions: d.MongoDBVersions,
		Options:         d.Options,
		ReplicaSets:     d.ReplicaSets,
	}
	if f.Processes == nil {
		f.Processes = []*Process{}
	}
	if f.MongoDBVersions == nil {
		f.MongoDBVersions = []MongoDBVersion{}
	}
	if f.Options == nil {
		f.Options = map[string]interface{}{}
	}
	return encodeWithExtra(f, d.extra)
}

func (p *Process) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}
	var f processFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("process: %w", err)
	}
	*p = Process{
		Name:        f.Name,
		ProcessType: f.ProcessType,
		Disabled:    f.Disabled,
		Hostname:    f.Hostname,
		Version:     f.Version,
		Ignore:      f.Ignore,
		Primary:     f.Primary,
		ConnectTo:   f.ConnectTo,
		Legacy:      f.Legacy,
		Nested:      f.Nested,
		extra:       unknownMembers(obj, processKeys...),
		raw:         append(json.RawMessage(nil), data...),
	}
	return nil
}

func (p Process) MarshalJSON() ([]byte, error) {
	if p.Ignore && p.raw != nil {
		return append([]byte(nil), p.raw...), nil
	}
	return encodeWithExtra(processFields{
		Name:        p.Name,
		ProcessType: p.ProcessType,
		Disabled:    p.Disabled,
		Hostname:    p.Hostname,
		Version:     p.Version,
		Ignore:      p.Ignore,
		Primary:     p.Primary,
		ConnectTo:   p.ConnectTo,
		Legacy:      p.Legacy,
		Nested:      p.Nested,
	}, p.extra)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var c Document
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ManagedProcesses returns the processes not flagged as ignored, in document order.
func (d *Document) ManagedProcesses() []*Process {
	managed := make([]*Process, 0, len(d.Processes))
	for _, p := range d.Processes {
		if !p.Ignore {
			managed = append(managed, p)
		}
	}
	return managed
}

// SetDisabled sets the disabled flag of every managed process.
// The agent is only ever asked to stop everything or to start everything.
func (d *Document) SetDisabled(disabled bool) {
	for _, p := range d.ManagedProcesses() {
		p.Disabled = disabled
	}
}

func (p *Process) ensureArgs() {
	if p.Legacy == nil {
		p.Legacy = &LegacyArgs{}
	}
	if p.Nested == nil {
		p.Nested = &NestedArgs{}
	}
}

// The setters below write one logical setting into both option blocks.
// The agent picks the block matching the server build it runs.

func (p *Process) SetPort(port int) {
	p.ensureArgs()
	p.Legacy.Port = port
	p.Nested.Port = port
}

func (p *Process) SetPaths(dbPath, logPath, pidFilePath string) {
	p.ensureArgs()
	p.Legacy.DBPath, p.Nested.DBPath = dbPath, dbPath
	p.Legacy.LogPath, p.Nested.LogPath = logPath, logPath
	p.Legacy.PIDFilePath, p.Nested.PIDFilePath = pidFilePath, pidFilePath
}

func (p *Process) SetReplSetName(name string) {
	p.ensureArgs()
	p.Legacy.ReplSet = name
	p.Nested.ReplSetName = name
}

// SetAffinity pins the process to cores. Only the nested schema knows about affinity.
func (p *Process) SetAffinity(cores []int) {
	p.ensureArgs()
	p.Nested.CPUAffinity = append([]int(nil), cores...)
	p.Nested.NumCores = len(cores)
}

func (p *Process) Port() int {
	if p.Nested != nil && p.Nested.Port != 0 {
		return p.Nested.Port
	}
	if p.Legacy != nil {
		return p.Legacy.Port
	}
	return 0
}

func (p *Process) DBPath() string {
	if p.Nested != nil && p.Nested.DBPath != "" {
		return p.Nested.DBPath
	}
	if p.Legacy != nil {
		return p.Legacy.DBPath
	}
	return ""
}

func (p *Process) LogPath() string {
	if p.Nested != nil && p.Nested.LogPath != "" {
		return p.Nested.LogPath
	}
	if p.Legacy != nil {
		return p.Legacy.LogPath
	}
	return ""
}

func (p *Process) PIDFilePath() string {
	if p.Nested != nil && p.Nested.PIDFilePath != "" {
		return p.Nested.PIDFilePath
	}
	if p.Legacy != nil {
		return p.Legacy.PIDFilePath
	}
	return ""
}

func (p *Process) ReplSetName() string {
	if p.Nested != nil && p.Nested.ReplSetName != "" {
		return p.Nested.ReplSetName
	}
	if p.Legacy != nil {
		return p.Legacy.ReplSet
	}
	return ""
}

func (p *Process) HostnameOrDefault() string {
	if p.Hostname == "" {
		return DefaultHostname
	}
	return p.Hostname
}

// MergeNestedOptions adds the options of overrides the nested block does not set yet.
func (p *Process) MergeNestedOptions(overrides map[string]interface{}) {
	if len(overrides) == 0 {
		return
	}
	p.ensureArgs()
	if p.Nested.Extra == nil {
		p.Nested.Extra = make(map[string]interface{})
	}
	MergeMissing(p.Nested.Extra, overrides)
}
