package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/KIT-MAMID/benchfleet/composer"
	"github.com/KIT-MAMID/benchfleet/orchestrator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
)

// Options is everything a run can be configured with.
// The json names are the keys accepted in the options file.
type Options struct {
	Template     string `json:"template"`
	DownloadBase string `json:"downloadBase"`
	DataDir      string `json:"dataDir"`
	LogDir       string `json:"logDir"`
	PIDDir       string `json:"pidDir"`
	ConfigFile   string `json:"configFile"`

	OS      string `json:"os"`
	URL     string `json:"url"`
	Bits    int    `json:"bits"`
	GitHash string `json:"gitHash"`
	Version string `json:"version"`

	BasePort      int                    `json:"basePort"`
	AgentName     string                 `json:"agentName"`
	NoAffinity    bool                   `json:"noAffinity"`
	MongodOptions map[string]interface{} `json:"mongodOptions"`

	Shutdown    bool         `json:"shutdown"`
	MetricsFile string       `json:"metricsFile"`
	LogLevel    logrus.Level `json:"logLevel"`
}

func defaultOptions() Options {
	return Options{
		DownloadBase: "/var/lib/mongodb-mms-automation",
		DataDir:      "/data",
		LogDir:       "/var/log/mongodb",
		PIDDir:       "/var/run/mongodb",
		ConfigFile:   "/var/lib/mongodb-mms-automation/automation-mongod.conf",
		OS:           "linux",
		Bits:         64,
		BasePort:     composer.DefaultBasePort,
		AgentName:    orchestrator.DefaultAgentName,
		LogLevel:     logrus.InfoLevel,
	}
}

// LogLevelFlag lets pflag set a logrus.Level.
type LogLevelFlag struct {
	// pflag.Value
	lvl *logrus.Level
}

func (f LogLevelFlag) String() string {
	if f.lvl == nil {
		return ""
	}
	return f.lvl.String()
}

func (f LogLevelFlag) Set(val string) error {
	l, err := logrus.ParseLevel(val)
	if err != nil {
		return err
	}
	*f.lvl = l
	return nil
}

func (f LogLevelFlag) Type() string {
	return "level"
}

// parseOptions parses the command line. Keys set in the options file
// override the corresponding flags.
func parseOptions(args []string) (Options, error) {
	opts := defaultOptions()
	var optionsFile string

	flags := pflag.NewFlagSet("benchfleet", pflag.ContinueOnError)
	flags.StringVar(&opts.Template, "template", opts.Template, "automation config template the fleet is composed from")
	flags.StringVar(&opts.DownloadBase, "download-base", opts.DownloadBase, "directory the agent downloads server builds to")
	flags.StringVar(&opts.DataDir, "data-dir", opts.DataDir, "base directory of the per-process data directories")
	flags.StringVar(&opts.LogDir, "log-dir", opts.LogDir, "directory of the per-process log files")
	flags.StringVar(&opts.PIDDir, "pid-dir", opts.PIDDir, "directory the agent writes pid files to")
	flags.StringVar(&opts.ConfigFile, "config-file", opts.ConfigFile, "automation config the agent watches")
	flags.StringVar(&opts.OS, "os", opts.OS, "platform of the server build")
	flags.StringVar(&opts.URL, "url", opts.URL, "download URL of the server build")
	flags.IntVar(&opts.Bits, "bits", opts.Bits, "bit width of the server build")
	flags.StringVar(&opts.GitHash, "git-hash", opts.GitHash, "git hash of the server build")
	flags.StringVar(&opts.Version, "version", opts.Version, "version of the server build, e.g. 3.2.1")
	flags.IntVar(&opts.BasePort, "base-port", opts.BasePort, "port of the first process, the others follow sequentially")
	flags.StringVar(&opts.AgentName, "agent-name", opts.AgentName, "executable name of the automation agent")
	flags.BoolVar(&opts.NoAffinity, "no-affinity", opts.NoAffinity, "do not pin processes to cores")
	flags.StringVar(&optionsFile, "options-file", "", "JSON document overriding any of the flags")
	flags.BoolVar(&opts.Shutdown, "shutdown", opts.Shutdown, "only stop the fleet and remove its data")
	flags.StringVar(&opts.MetricsFile, "metrics-file", opts.MetricsFile, "write run metrics in text exposition format to this file")
	flags.Var(LogLevelFlag{&opts.LogLevel}, "log-level", "possible values: debug, info, warning, error, fatal, panic")

	if err := flags.Parse(args); err != nil {
		return Options{}, automation.NewError(automation.InvalidOptions, err, "invalid command line")
	}

	if optionsFile != "" {
		if err := readOptionsFile(optionsFile, &opts); err != nil {
			return Options{}, err
		}
	}
	return opts, opts.validate()
}

// readOptionsFile decodes the file at path onto opts. Unknown keys are an error.
func readOptionsFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return automation.NewError(automation.ConfigNotFound, err, "no options file at `%s`", path)
		}
		return fmt.Errorf("could not read options file `%s`: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(opts); err != nil {
		return automation.NewError(automation.InvalidOptions, err, "invalid options file `%s`", path)
	}
	return nil
}

func (o Options) validate() error {
	if o.ConfigFile == "" {
		return automation.NewError(automation.InvalidOptions, nil, "config file cannot be empty")
	}
	if o.PIDDir == "" {
		return automation.NewError(automation.InvalidOptions, nil, "pid directory cannot be empty")
	}
	if o.Shutdown {
		return nil
	}
	switch {
	case o.Template == "":
		return automation.NewError(automation.InvalidOptions, nil, "no template passed; specify with --template")
	case o.Version == "":
		return automation.NewError(automation.InvalidOptions, nil, "no server version passed; specify with --version")
	case o.URL == "":
		return automation.NewError(automation.InvalidOptions, nil, "no download URL passed; specify with --url")
	case o.DataDir == "" || o.LogDir == "":
		return automation.NewError(automation.InvalidOptions, nil, "data and log directories cannot be empty")
	case o.BasePort < 1 || o.BasePort > 65535:
		return automation.NewError(automation.InvalidOptions, nil, "base port %d out of range", o.BasePort)
	}
	return nil
}

func (o Options) composerParams() composer.Params {
	return composer.Params{
		DownloadBase:  o.DownloadBase,
		DataDir:       o.DataDir,
		LogDir:        o.LogDir,
		PIDDir:        o.PIDDir,
		Platform:      o.OS,
		URL:           o.URL,
		Bits:          o.Bits,
		GitHash:       o.GitHash,
		Version:       o.Version,
		BasePort:      o.BasePort,
		MongodOptions: o.MongodOptions,
	}
}
