package config

import (
	"regexp"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
)

// Validate checks settings that would otherwise fail deep inside a build.
func Validate(c *Config) error {
	job := c.Job

	if job.ChangeBundleID && (job.BundleID == "" || job.BundleIDInfoPlistPath == "") {
		return errs.ConfigError("change_bundle_id requires bundle_id and bundle_id_info_plist_path").Build()
	}
	if job.InterpretTargetAsRegex && job.Scheme == "" {
		if job.Target == "" {
			return errs.ConfigError("interpret_target_as_regex requires a target pattern").Build()
		}
		if _, err := regexp.Compile(job.Target); err != nil {
			return errs.WrapError(err, errs.CategoryConfig, "invalid target pattern").
				Fatal().UserAction().WithContext("target", job.Target).Build()
		}
	}
	if job.UnlockKeychain && job.KeychainName != "" && job.KeychainPath == "" {
		if _, ok := c.FindKeychain(job.KeychainName); !ok {
			return errs.ConfigError("unknown keychain").WithContext("keychain", job.KeychainName).Build()
		}
	}
	if c.DefaultKeychain != "" {
		if _, ok := c.FindKeychain(c.DefaultKeychain); !ok {
			return errs.ConfigError("default_keychain does not name a configured keychain").
				WithContext("keychain", c.DefaultKeychain).Build()
		}
	}
	seen := make(map[string]bool, len(c.Keychains))
	for _, k := range c.Keychains {
		if k.Name == "" || k.Path == "" {
			return errs.ConfigError("keychains need a name and a path").Build()
		}
		if seen[k.Name] {
			return errs.ConfigError("duplicate keychain name").WithContext("keychain", k.Name).Build()
		}
		seen[k.Name] = true
	}
	return nil
}
