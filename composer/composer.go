package composer

import (
	"fmt"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/KIT-MAMID/benchfleet/topology"
	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"
)

var composerLog = logrus.WithField("module", "composer")

// The legacy option block is understood by 2.4 agents; older builds cannot be driven at all.
const mongodMinRequiredVersion = ">= 2.4"

const DefaultBasePort = 27017

// Params are the runtime inputs merged into the template.
type Params struct {
	DownloadBase string
	DataDir      string
	LogDir       string
	PIDDir       string

	// Build to download and run
	Platform string
	URL      string
	Bits     int
	GitHash  string
	Version  string

	BasePort int

	// Nested-schema options added to every mongod process, e.g. {"storage": {"engine": "wiredTiger"}}
	MongodOptions map[string]interface{}
}

// VersionName is the download identifier processes reference.
func (p Params) VersionName() string {
	if p.GitHash == "" {
		return p.Version
	}
	return fmt.Sprintf("%s-%s", p.Version, p.GitHash)
}

type Composer struct {
	Host topology.Host
}

func NewComposer(host topology.Host) *Composer {
	return &Composer{Host: host}
}

// Compose derives a fully populated document from template. The template is not modified.
// It returns the document and the cores reserved for the benchmark driver, which
// are empty if the host does not support pinning.
func (c *Composer) Compose(template *automation.Document, params Params) (doc *automation.Document, benchmarkCores []int, err error) {
	if err = checkVersion(params.Version); err != nil {
		return nil, nil, err
	}
	if params.BasePort == 0 {
		params.BasePort = DefaultBasePort
	}

	if doc, err = template.Clone(); err != nil {
		return nil, nil, fmt.Errorf("could not copy template: %w", err)
	}

	if doc.Options == nil {
		doc.Options = make(map[string]interface{})
	}
	doc.Options["downloadBase"] = params.DownloadBase
	doc.MongoDBVersions = []automation.MongoDBVersion{{
		Name: params.VersionName(),
		Builds: []automation.Build{{
			Platform:   params.Platform,
			URL:        params.URL,
			GitVersion: params.GitHash,
			Bits:       params.Bits,
		}},
	}}

	topo, err := c.Host.Topology()
	if err != nil {
		return nil, nil, fmt.Errorf("could not query cpu topology: %w", err)
	}
	useAffinity, chunks, err := topology.Plan(len(doc.Processes)+1, topo)
	if err != nil {
		return nil, nil, err
	}
	if useAffinity {
		if len(chunks) == 0 {
			return nil, nil, automation.NewError(automation.InsufficientCores, nil, "no core chunk left for the benchmark driver")
		}
		benchmarkCores = chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
	}

	port := params.BasePort
	for _, p := range doc.ManagedProcesses() {
		p.Version = params.VersionName()
		p.SetPaths(
			automation.DBPath(params.DataDir, p.Name),
			automation.LogPath(params.LogDir, p.Name),
			automation.PIDFilePath(params.PIDDir, p.Name),
		)
		if p.ProcessType == automation.ProcessTypeMongod {
			p.MergeNestedOptions(params.MongodOptions)
		}
		p.SetPort(port)
		port++

		if useAffinity {
			if len(chunks) == 0 {
				return nil, nil, automation.NewError(automation.InsufficientCores, nil,
					"no core chunk left for process `%s`", p.Name)
			}
			p.SetAffinity(chunks[0])
			chunks = chunks[1:]
		}
		composerLog.Debugf("process `%s`: port %d, cores %v", p.Name, p.Port(), p.Nested.CPUAffinity)
	}

	return doc, benchmarkCores, nil
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return automation.NewError(automation.InvalidVersion, err, "unparsable server version `%s`", version)
	}
	constraint, err := semver.NewConstraint(mongodMinRequiredVersion)
	if err != nil {
		return fmt.Errorf("composer.checkVersion() failed with: %s", err)
	}
	// development builds carry pre-release tags; judge them by their release triple
	release, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()))
	if err != nil {
		return fmt.Errorf("composer.checkVersion() failed with: %s", err)
	}
	if !constraint.Check(release) {
		return automation.NewError(automation.InvalidVersion, nil, "server version `%s` does not satisfy `%s`", version, mongodMinRequiredVersion)
	}
	return nil
}
