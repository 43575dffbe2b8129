package config

import "time"

// Default values applied to unset fields.
const (
	DefaultXcodebuildPath = "/usr/bin/xcodebuild"
	DefaultAgvtoolPath    = "/usr/bin/agvtool"
	DefaultXcrunPath      = "/usr/bin/xcrun"
	DefaultPlistBuddyPath = "/usr/libexec/PlistBuddy"
	DefaultSecurityPath   = "/usr/bin/security"
	DefaultDittoPath      = "/usr/bin/ditto"

	DefaultConfiguration = "Release"
	DefaultEventSubject  = "xcodebuilder.builds"
	DefaultListTimeout   = 10 * time.Second
)

func applyDefaults(c *Config) {
	setIfEmpty(&c.Tools.Xcodebuild, DefaultXcodebuildPath)
	setIfEmpty(&c.Tools.Agvtool, DefaultAgvtoolPath)
	setIfEmpty(&c.Tools.Xcrun, DefaultXcrunPath)
	setIfEmpty(&c.Tools.PlistBuddy, DefaultPlistBuddyPath)
	setIfEmpty(&c.Tools.Security, DefaultSecurityPath)
	setIfEmpty(&c.Tools.Ditto, DefaultDittoPath)

	setIfEmpty(&c.Job.Configuration, DefaultConfiguration)
	if c.Job.ListTimeout <= 0 {
		c.Job.ListTimeout = DefaultListTimeout
	}
	if c.Events.NATSURL != "" {
		setIfEmpty(&c.Events.Subject, DefaultEventSubject)
	}
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
