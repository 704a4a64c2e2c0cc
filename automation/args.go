package automation

import (
	"encoding/json"
)

// LegacyArgs is the flat option block (`args2_4`) read by agents driving
// servers older than 2.6.
type LegacyArgs struct {
	Port        int
	DBPath      string
	LogPath     string
	PIDFilePath string
	ReplSet     string

	// Options this tool does not manage, kept as decoded.
	Extra map[string]interface{}
}

// NestedArgs is the sectioned option block (`args2_6`).
type NestedArgs struct {
	Port        int    // net.port
	DBPath      string // storage.dbPath
	LogPath     string // systemLog.path
	PIDFilePath string // processManagement.pidFilePath
	ReplSetName string // replication.replSetName
	CPUAffinity []int
	NumCores    int

	// Options this tool does not manage, sections included.
	Extra map[string]interface{}
}

const (
	sectionNet               = "net"
	sectionStorage           = "storage"
	sectionSystemLog         = "systemLog"
	sectionProcessManagement = "processManagement"
	sectionReplication       = "replication"
)

func takeInt(m map[string]interface{}, key string) int {
	if i, ok := intValue(m[key]); ok {
		delete(m, key)
		return i
	}
	return 0
}

func takeString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		delete(m, key)
		return s
	}
	return ""
}

func takeInts(m map[string]interface{}, key string) []int {
	list, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	ints := make([]int, 0, len(list))
	for _, v := range list {
		i, ok := intValue(v)
		if !ok {
			return nil
		}
		ints = append(ints, i)
	}
	delete(m, key)
	return ints
}

// section returns the named section of m, or nil if it is absent or not an object.
func section(m map[string]interface{}, name string) map[string]interface{} {
	s, _ := m[name].(map[string]interface{})
	return s
}

// takeFromSection applies take to the section and drops the section if it
// became empty because of it.
func takeFromSection(m map[string]interface{}, name string, take func(map[string]interface{})) {
	s := section(m, name)
	if s == nil {
		return
	}
	before := len(s)
	take(s)
	if len(s) == 0 && before > 0 {
		delete(m, name)
	}
}

func setInSection(m map[string]interface{}, name, key string, value interface{}) {
	s := section(m, name)
	if s == nil {
		s = make(map[string]interface{})
		m[name] = s
	}
	s[key] = value
}

func (a *LegacyArgs) UnmarshalJSON(data []byte) error {
	m, err := decodeGeneric(data)
	if err != nil {
		return err
	}
	*a = LegacyArgs{
		Port:        takeInt(m, "port"),
		DBPath:      takeString(m, "dbpath"),
		LogPath:     takeString(m, "logpath"),
		PIDFilePath: takeString(m, "pidfilepath"),
		ReplSet:     takeString(m, "replSet"),
		Extra:       m,
	}
	return nil
}

func (a LegacyArgs) MarshalJSON() ([]byte, error) {
	m := DeepCopyMap(a.Extra)
	if m == nil {
		m = make(map[string]interface{})
	}
	if a.Port != 0 {
		m["port"] = a.Port
	}
	if a.DBPath != "" {
		m["dbpath"] = a.DBPath
	}
	if a.LogPath != "" {
		m["logpath"] = a.LogPath
	}
	if a.PIDFilePath != "" {
		m["pidfilepath"] = a.PIDFilePath
	}
	if a.ReplSet != "" {
		m["replSet"] = a.ReplSet
	}
	return json.Marshal(m)
}

func (a *NestedArgs) UnmarshalJSON(data []byte) error {
	m, err := decodeGeneric(data)
	if err != nil {
		return err
	}
	*a = NestedArgs{}
	takeFromSection(m, sectionNet, func(s map[string]interface{}) {
		a.Port = takeInt(s, "port")
	})
	takeFromSection(m, sectionStorage, func(s map[string]interface{}) {
		a.DBPath = takeString(s, "dbPath")
	})
	takeFromSection(m, sectionSystemLog, func(s map[string]interface{}) {
		a.LogPath = takeString(s, "path")
	})
	takeFromSection(m, sectionProcessManagement, func(s map[string]interface{}) {
		a.PIDFilePath = takeString(s, "pidFilePath")
	})
	takeFromSection(m, sectionReplication, func(s map[string]interface{}) {
		a.ReplSetName = takeString(s, "replSetName")
	})
	a.CPUAffinity = takeInts(m, "cpuAffinity")
	a.NumCores = takeInt(m, "numCores")
	a.Extra = m
	return nil
}

func (a NestedArgs) MarshalJSON() ([]byte, error) {
	m := DeepCopyMap(a.Extra)
	if m == nil {
		m = make(map[string]interface{})
	}
	if a.Port != 0 {
		setInSection(m, sectionNet, "port", a.Port)
	}
	if a.DBPath != "" {
		setInSection(m, sectionStorage, "dbPath", a.DBPath)
	}
	if a.LogPath != "" {
		setInSection(m, sectionSystemLog, "path", a.LogPath)
		if _, set := section(m, sectionSystemLog)["destination"]; !set {
			setInSection(m, sectionSystemLog, "destination", "file")
		}
	}
	if a.PIDFilePath != "" {
		setInSection(m, sectionProcessManagement, "pidFilePath", a.PIDFilePath)
	}
	if a.ReplSetName != "" {
		setInSection(m, sectionReplication, "replSetName", a.ReplSetName)
	}
	if len(a.CPUAffinity) > 0 {
		m["cpuAffinity"] = a.CPUAffinity
	}
	if a.NumCores > 0 {
		m["numCores"] = a.NumCores
	}
	return json.Marshal(m)
}
