package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the deploy manager configuration loaded from YAML.
type Config struct {
	// Orgnumber identifies the organization operating this node; supervisor log entries carry it.
	Orgnumber string `yaml:"orgnumber" validate:"required,orgnumber"`
	// LogLevel is the minimum level of supervisor log entries.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// StateFile is where the current deployment and blocklist are persisted.
	StateFile string `yaml:"state_file"`

	Repository   Repository   `yaml:"repository"`
	Actuator     Actuator     `yaml:"actuator"`
	Launch       Launch       `yaml:"launch"`
	Shutdown     Shutdown     `yaml:"shutdown"`
	Scheduler    Scheduler    `yaml:"scheduler"`
	Environment  Environment  `yaml:"environment"`
	Verification Verification `yaml:"verification"`
	Blocklist    Blocklist    `yaml:"blocklist"`
	Status       Status       `yaml:"status"`
}

// Repository points at the Maven repository publishing the payload.
type Repository struct {
	// URL is the repository root, e.g. https://repo1.maven.org/maven2.
	URL string `yaml:"url" validate:"required,url"`
	// ID names the repository in deployment metadata.
	ID string `yaml:"id"`
	// GroupID is the Maven group of the payload artifact.
	GroupID string `yaml:"group_id" validate:"required"`
	// ArtifactID is the Maven artifact id of the payload.
	ArtifactID string `yaml:"artifact_id" validate:"required"`
	// ConnectTimeout bounds establishing a connection to the repository.
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	// ReadTimeout bounds waiting for a repository response.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
}

// Actuator is the payload management endpoint.
type Actuator struct {
	// URL is the management base URL; /health and /shutdown are appended.
	URL string `yaml:"url" validate:"required,url"`
	// ConnectTimeout bounds establishing a connection to the endpoint.
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	// ReadTimeout bounds waiting for the endpoint response.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
}

// Launch controls how the payload process is started.
type Launch struct {
	// Runtime is the interpreter executable, "java" by default.
	Runtime string `yaml:"runtime"`
	// Home is the working directory of the child and the artifact download directory.
	Home string `yaml:"home" validate:"required"`
	// Profile is pinned as the active profile of the payload.
	Profile string `yaml:"profile" validate:"required"`
	// Timeout is the total budget for the payload to report UP.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// PollInterval is the delay between health polls during startup.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0,ltefield=Timeout"`
	// IncludeLog mirrors child output into the supervisor log at debug level.
	IncludeLog bool `yaml:"include_log"`
	// LogLimit caps the startup log kept in memory, in bytes.
	LogLimit int `yaml:"log_limit" validate:"gt=0"`
}

// Shutdown controls retirement of the previous instance.
type Shutdown struct {
	// Retries is the number of health polls waiting for the old instance to go down.
	Retries int `yaml:"retries" validate:"gt=0"`
	// PollInterval is the delay between those polls.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// Scheduler holds the cycle trigger.
type Scheduler struct {
	// Cron is the cycle schedule; an optional leading seconds field is accepted.
	Cron string `yaml:"cron" validate:"required,cron"`
}

// Environment shapes the child process environment.
type Environment struct {
	// PrefixesRemovedFromChildProcess lists variable name prefixes not inherited by the child.
	PrefixesRemovedFromChildProcess []string `yaml:"prefixes_removed_from_child_process"`
	// EnvFile is an optional dotenv file merged over the supervisor environment.
	EnvFile string `yaml:"env_file"`
}

// Verification lists where signer public keys are published.
type Verification struct {
	// PublicKeyURLs are armored OpenPGP public key downloads forming the trusted keyring.
	PublicKeyURLs []string `yaml:"public_key_urls" validate:"required,min=1,dive,url"`
}

// Blocklist controls skipping of versions that failed to launch.
type Blocklist struct {
	// Enabled turns the blocklist on.
	Enabled bool `yaml:"enabled"`
	// Duration is how long a failed version stays blocklisted.
	Duration time.Duration `yaml:"duration" validate:"gte=0"`
}

// Status configures the gRPC status endpoint of the supervisor.
type Status struct {
	// ListenAddress is the gRPC listen address; empty disables the endpoint.
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

const (
	// DefaultConfigFilename is the configuration file looked up when no path is given.
	DefaultConfigFilename = "deploy-manager.yaml"

	// DefaultStateFilename is the default state file location.
	DefaultStateFilename = "deploy-manager-state.yaml"

	// DefaultRuntime is the interpreter used to launch the payload.
	DefaultRuntime = "java"

	// DefaultRepositoryID names the repository when none is configured.
	DefaultRepositoryID = "central"

	// DefaultLogLimit is the default startup log cap in bytes.
	DefaultLogLimit = 64 * 1024

	// DefaultBlocklistDuration is how long a failed version is skipped by default.
	DefaultBlocklistDuration = 2 * time.Hour

	// DefaultFilePermissions is used for files written by the deploy manager.
	DefaultFilePermissions = 0o600

	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultLaunchTimeout  = 3 * time.Minute
	defaultLaunchPoll     = 5 * time.Second
	defaultShutdownPoll   = 2 * time.Second
	defaultShutdownTries  = 15
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Load reads configuration from path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	return nil
}

// Validate fills defaults for unset optional values and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.Repository.ID == "" {
		cfg.Repository.ID = DefaultRepositoryID
	}

	setDuration(&cfg.Repository.ConnectTimeout, defaultConnectTimeout)
	setDuration(&cfg.Repository.ReadTimeout, defaultReadTimeout)
	setDuration(&cfg.Actuator.ConnectTimeout, defaultConnectTimeout)
	setDuration(&cfg.Actuator.ReadTimeout, defaultReadTimeout)
	setDuration(&cfg.Launch.Timeout, defaultLaunchTimeout)
	setDuration(&cfg.Launch.PollInterval, defaultLaunchPoll)
	setDuration(&cfg.Shutdown.PollInterval, defaultShutdownPoll)

	if cfg.Launch.Runtime == "" {
		cfg.Launch.Runtime = DefaultRuntime
	}

	if cfg.Launch.LogLimit == 0 {
		cfg.Launch.LogLimit = DefaultLogLimit
	}

	if cfg.Shutdown.Retries == 0 {
		cfg.Shutdown.Retries = defaultShutdownTries
	}

	if cfg.Blocklist.Enabled && cfg.Blocklist.Duration == 0 {
		cfg.Blocklist.Duration = DefaultBlocklistDuration
	}
}

func setDuration(d *time.Duration, fallback time.Duration) {
	if *d == 0 {
		*d = fallback
	}
}
