// Package config loads the xcodebuilder configuration: tool locations, known
// keychains, the build job and optional integrations (history, events, metrics,
// schedule).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the configuration format written by Init and produced by Migrate.
const CurrentVersion = "1"

// Config is the immutable configuration for one process.
type Config struct {
	Version         string     `yaml:"version"`
	Tools           Tools      `yaml:"tools"`
	Keychains       []Keychain `yaml:"keychains,omitempty"`
	DefaultKeychain string     `yaml:"default_keychain,omitempty"`
	Job             Job        `yaml:"job"`
	History         History    `yaml:"history,omitempty"`
	Events          Events     `yaml:"events,omitempty"`
	Metrics         Metrics    `yaml:"metrics,omitempty"`
	Schedule        Schedule   `yaml:"schedule,omitempty"`
}

// Tools holds absolute paths of the external binaries.
type Tools struct {
	Xcodebuild string `yaml:"xcodebuild"`
	Agvtool    string `yaml:"agvtool"`
	Xcrun      string `yaml:"xcrun"`
	PlistBuddy string `yaml:"plistbuddy"`
	Security   string `yaml:"security"`
	Ditto      string `yaml:"ditto"`
}

// Keychain is a credential store holding signing identities.
type Keychain struct {
	Name         string `yaml:"name"`
	Path         string `yaml:"path"`
	Password     string `yaml:"password,omitempty"`
	InSearchPath bool   `yaml:"in_search_path,omitempty"`
}

// LogValue keeps the password out of logs.
func (k Keychain) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", k.Name),
		slog.String("path", k.Path),
		slog.Bool("has_password", k.Password != ""),
		slog.Bool("in_search_path", k.InSearchPath),
	)
}

// Job describes one build. String fields may contain ${VAR} placeholders that
// are resolved against the build environment when the pipeline starts.
type Job struct {
	ProjectPath   string `yaml:"project_path,omitempty"`
	ProjectFile   string `yaml:"project_file,omitempty"`
	WorkspaceFile string `yaml:"workspace_file,omitempty"`

	Scheme                 string `yaml:"scheme,omitempty"`
	Target                 string `yaml:"target,omitempty"`
	InterpretTargetAsRegex bool   `yaml:"interpret_target_as_regex,omitempty"`

	SDK                   string `yaml:"sdk,omitempty"`
	Configuration         string `yaml:"configuration,omitempty"`
	Symroot               string `yaml:"symroot,omitempty"`
	ConfigurationBuildDir string `yaml:"configuration_build_dir,omitempty"`
	CodeSigningIdentity   string `yaml:"code_signing_identity,omitempty"`
	XcodebuildArguments   string `yaml:"xcodebuild_arguments,omitempty"`

	CleanBeforeBuild         bool `yaml:"clean_before_build,omitempty"`
	CleanTestReports         bool `yaml:"clean_test_reports,omitempty"`
	GenerateArchive          bool `yaml:"generate_archive,omitempty"`
	AllowFailingBuildResults bool `yaml:"allow_failing_build_results,omitempty"`

	UnlockKeychain   bool   `yaml:"unlock_keychain,omitempty"`
	KeychainName     string `yaml:"keychain_name,omitempty"`
	KeychainPath     string `yaml:"keychain_path,omitempty"`
	KeychainPassword string `yaml:"keychain_password,omitempty"`

	ProvideApplicationVersion Toggle `yaml:"provide_application_version,omitempty"`
	MarketingVersion          string `yaml:"marketing_version,omitempty"`
	BuildNumber               string `yaml:"build_number,omitempty"`

	ChangeBundleID        bool   `yaml:"change_bundle_id,omitempty"`
	BundleID              string `yaml:"bundle_id,omitempty"`
	BundleIDInfoPlistPath string `yaml:"bundle_id_info_plist_path,omitempty"`

	Packaging Packaging `yaml:"packaging,omitempty"`

	ListTimeout time.Duration `yaml:"list_timeout,omitempty"`
}

// Packaging configures IPA creation.
type Packaging struct {
	Enabled         bool   `yaml:"enabled,omitempty"`
	NamePattern     string `yaml:"name_pattern,omitempty"`
	OutputDirectory string `yaml:"output_directory,omitempty"`
	EmbeddedProfile string `yaml:"embedded_profile,omitempty"`
	SignAtPackaging bool   `yaml:"sign_at_packaging,omitempty"`
	ManifestURL     string `yaml:"manifest_url,omitempty"`
}

// History configures the local build history database.
type History struct {
	Path string `yaml:"path,omitempty"`
}

// Events configures build-finished notifications.
type Events struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`

	// Publish retry backoff: fixed, linear or exponential. Zero values use the defaults.
	RetryBackoff string        `yaml:"retry_backoff,omitempty"`
	RetryInitial time.Duration `yaml:"retry_initial,omitempty"`
	RetryMax     time.Duration `yaml:"retry_max,omitempty"`
	MaxRetries   int           `yaml:"max_retries,omitempty"`
}

// Metrics configures the Prometheus textfile output.
type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Schedule configures recurring builds.
type Schedule struct {
	Cron string `yaml:"cron,omitempty"`
}

// Load reads, migrates, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", slog.String("reason", err.Error()))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML, applies legacy migration and defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	cfg, err := Migrate(doc)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// FindKeychain returns the configured keychain with the given name.
func (c *Config) FindKeychain(name string) (Keychain, bool) {
	for _, k := range c.Keychains {
		if k.Name == name {
			return k, true
		}
	}
	return Keychain{}, false
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Version: CurrentVersion,
		Keychains: []Keychain{{
			Name:         "ci",
			Path:         "${HOME}/Library/Keychains/ci.keychain",
			Password:     "${CI_KEYCHAIN_PASSWORD}",
			InSearchPath: true,
		}},
		DefaultKeychain: "ci",
		Job: Job{
			WorkspaceFile:             "MyApp",
			Scheme:                    "MyApp",
			SDK:                       "iphoneos",
			Configuration:             "Release",
			CleanBeforeBuild:          true,
			UnlockKeychain:            true,
			KeychainName:              "ci",
			ProvideApplicationVersion: ToggleEnabled,
			MarketingVersion:          "1.0",
			BuildNumber:               "${BUILD_NUMBER}",
			Packaging: Packaging{
				Enabled:         true,
				OutputDirectory: "dist",
				ManifestURL:     "https://downloads.example.com/myapp",
			},
		},
		History: History{Path: ".xcodebuilder/history.db"},
	}
	applyDefaults(&example)

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
