package config

import (
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
)

const (
	// DefaultConfigPath is the default path to the dirsync config.
	DefaultConfigPath = "~/.dirsync.yaml"

	// InitialConfigVersion is the first version of the dirsync config.
	// Config files that do not specify a version will default to this
	// version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the supported version of the dirsync config
	// of the current binary.
	SupportedConfigVersion = "v1alpha1"

	// DefaultPollInterval is how often the agents scan their watched
	// directory when nothing else is configured.
	DefaultPollInterval = time.Second
)

// Config is the configuration for both agents. Each agent only reads its own
// section.
type Config struct {
	Version  string   `json:"version,omitempty"`
	Sender   Sender   `json:"sender"`
	Receiver Receiver `json:"receiver"`
}

// Agent contains the settings shared by the sender and the receiver.
type Agent struct {
	// PollInterval is the time between scans of the watched directory.
	PollInterval Duration `json:"pollInterval"`

	// Atomic makes the agent write into a temporary file and rename it into
	// place, so that readers of the destination never see partial files.
	Atomic bool `json:"atomic,omitempty"`

	// StateDir, if set, persists the processed set across restarts.
	StateDir string `json:"stateDir,omitempty"`

	// WatchEvents wakes the agent early when the watched directory changes.
	// Polling still happens at PollInterval.
	WatchEvents bool `json:"watchEvents,omitempty"`
}

// Sender configures the agent that publishes files into the shared directory.
type Sender struct {
	SourceDir string `json:"sourceDir"`
	SharedDir string `json:"sharedDir"`
	Policy    Policy `json:"policy,omitempty"`
	Agent
}

// Receiver configures the agent that ingests files from the shared directory.
type Receiver struct {
	SharedDir string `json:"sharedDir"`
	DestDir   string `json:"destDir"`
	Agent
}

// Policy contains the optional validation rules applied by the sender on top
// of the existence and non-empty checks.
type Policy struct {
	// Include, if non-empty, only allows files whose name matches one of the
	// patterns.
	Include []string `json:"include,omitempty"`

	// Exclude rejects files whose name matches any of the patterns.
	Exclude []string `json:"exclude,omitempty"`

	// MaxSize rejects files larger than the given number of bytes. Zero
	// disables the check.
	MaxSize int64 `json:"maxSize,omitempty"`
}

// Defaults returns the configuration used when no config file exists.
func Defaults() Config {
	agent := Agent{PollInterval: Duration{DefaultPollInterval}}
	return Config{
		Version: InitialConfigVersion,
		Sender: Sender{
			SourceDir: "/app/data",
			SharedDir: "/shared",
			Agent:     agent,
		},
		Receiver: Receiver{
			SharedDir: "/shared",
			DestDir:   "/app/data",
			Agent:     agent,
		},
	}
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Parse parses the config at `path`. Fields that aren't set in the file keep
// their default values.
func Parse(path string) (Config, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	config := Defaults()
	if err := readConfig(path, &config); err != nil {
		return Config{}, err
	}

	// Evaluate relative paths relative to the config path.
	relativeTo := filepath.Dir(path)
	dirs := []*string{
		&config.Sender.SourceDir,
		&config.Sender.SharedDir,
		&config.Sender.StateDir,
		&config.Receiver.SharedDir,
		&config.Receiver.DestDir,
		&config.Receiver.StateDir,
	}
	for _, dir := range dirs {
		if *dir, err = resolvePath(*dir, relativeTo); err != nil {
			return Config{}, errors.WithContext(err, "expand directory")
		}
	}
	return config, nil
}

// Load parses the config at `path`, and falls back to the defaults if the file
// doesn't exist.
func Load(path string) (Config, error) {
	config, err := Parse(path)
	if err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			log.WithField("path", path).Debug("Config file not found. Using defaults.")
			return Defaults(), nil
		}
		return Config{}, errors.WithContext(err, "parse")
	}
	return config, nil
}

// Write writes the given config to `path`.
func Write(path string, cfg Config) error {
	cfg.Version = SupportedConfigVersion
	path, err := homedirExpand(path)
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func resolvePath(path, relativeTo string) (string, error) {
	if path == "" {
		return "", nil
	}

	path, err := homedirExpand(path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(relativeTo, path)
	}
	return path, nil
}

// Validate checks that the sender config can be used to run an agent.
func (c Sender) Validate() error {
	if c.SourceDir == "" {
		return errors.MissingFieldError{Field: "sender.sourceDir"}
	}
	if c.SharedDir == "" {
		return errors.MissingFieldError{Field: "sender.sharedDir"}
	}
	if filepath.Clean(c.SourceDir) == filepath.Clean(c.SharedDir) {
		return errors.NewFriendlyError("The sender's source directory and shared "+
			"directory must differ, but both are %q.", c.SourceDir)
	}
	if err := c.Agent.validate("sender"); err != nil {
		return err
	}
	return c.Policy.validate()
}

// Validate checks that the receiver config can be used to run an agent.
func (c Receiver) Validate() error {
	if c.SharedDir == "" {
		return errors.MissingFieldError{Field: "receiver.sharedDir"}
	}
	if c.DestDir == "" {
		return errors.MissingFieldError{Field: "receiver.destDir"}
	}
	if filepath.Clean(c.SharedDir) == filepath.Clean(c.DestDir) {
		return errors.NewFriendlyError("The receiver's shared directory and "+
			"destination directory must differ, but both are %q.", c.SharedDir)
	}
	return c.Agent.validate("receiver")
}

func (a Agent) validate(section string) error {
	if a.PollInterval.Duration <= 0 {
		return errors.NewFriendlyError("%s.pollInterval must be positive, but is %s.",
			section, a.PollInterval)
	}
	return nil
}

func (p Policy) validate() error {
	for _, pattern := range append(append([]string{}, p.Include...), p.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return errors.NewFriendlyError("Invalid pattern %q in sender.policy.", pattern)
		}
	}
	if p.MaxSize < 0 {
		return errors.NewFriendlyError("sender.policy.maxSize must not be negative.")
	}
	return nil
}
