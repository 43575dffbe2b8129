package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is a decoded configuration file before migration. Legacy holds the
// fields of the unversioned format that were renamed or moved in version 1.
type Document struct {
	Config Config
	Legacy Legacy
}

// Legacy lists the unversioned-format fields.
type Legacy struct {
	XcodebuildPath string    `yaml:"xcodebuild_path,omitempty"`
	AgvtoolPath    string    `yaml:"agvtool_path,omitempty"`
	XcrunPath      string    `yaml:"xcrun_path,omitempty"`
	Job            LegacyJob `yaml:"job,omitempty"`
}

// LegacyJob lists the job fields renamed in version 1.
type LegacyJob struct {
	CFBundleVersionValue            string `yaml:"cf_bundle_version_value,omitempty"`
	CFBundleShortVersionStringValue string `yaml:"cf_bundle_short_version_string_value,omitempty"`
	IPAName                         string `yaml:"ipa_name,omitempty"`
	IPAOutputDirectory              string `yaml:"ipa_output_directory,omitempty"`
	BuildIPA                        bool   `yaml:"build_ipa,omitempty"`
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc.Config); err != nil {
		return doc, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if doc.Config.Version == "" || doc.Config.Version == "0" {
		if err := yaml.Unmarshal(data, &doc.Legacy); err != nil {
			return doc, fmt.Errorf("failed to unmarshal legacy config: %w", err)
		}
	}
	return doc, nil
}

// Migrate converts a decoded document to the current format.
func Migrate(doc Document) (*Config, error) {
	cfg := doc.Config
	switch cfg.Version {
	case CurrentVersion:
		return &cfg, nil
	case "", "0":
		migrateV0(&cfg, doc.Legacy)
		cfg.Version = CurrentVersion
		return &cfg, nil
	default:
		return nil, fmt.Errorf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)
	}
}

func migrateV0(cfg *Config, legacy Legacy) {
	setIfEmpty(&cfg.Tools.Xcodebuild, legacy.XcodebuildPath)
	setIfEmpty(&cfg.Tools.Agvtool, legacy.AgvtoolPath)
	setIfEmpty(&cfg.Tools.Xcrun, legacy.XcrunPath)

	lj := legacy.Job
	setIfEmpty(&cfg.Job.BuildNumber, lj.CFBundleVersionValue)
	setIfEmpty(&cfg.Job.MarketingVersion, lj.CFBundleShortVersionStringValue)
	setIfEmpty(&cfg.Job.Packaging.NamePattern, lj.IPAName)
	setIfEmpty(&cfg.Job.Packaging.OutputDirectory, lj.IPAOutputDirectory)
	if lj.BuildIPA {
		cfg.Job.Packaging.Enabled = true
	}

	// Legacy jobs had no toggle; templates alone implied write-back.
	cfg.Job.ProvideApplicationVersion = ResolveProvideVersion(
		cfg.Job.ProvideApplicationVersion, cfg.Job.MarketingVersion, cfg.Job.BuildNumber)
}
