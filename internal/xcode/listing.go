package xcode

import (
	"bufio"
	"strings"
)

// ProjectListing is the parsed output of `xcodebuild -list`.
type ProjectListing struct {
	Targets        TargetSet
	Configurations []string
	Schemes        []string
}

// TargetSet is an ordered, duplicate-free list of target names.
type TargetSet []string

// Empty reports whether no targets were discovered.
func (t TargetSet) Empty() bool { return len(t) == 0 }

type listSection int

const (
	sectionNone listSection = iota
	sectionTargets
	sectionConfigurations
	sectionSchemes
)

// ParseTargetList parses `xcodebuild -list` output. Section headers are
// recognised by name; entries are the more deeply indented lines that follow.
// Unrecognised text is ignored, so truncated output yields partial results.
func ParseTargetList(output string) ProjectListing {
	var listing ProjectListing
	section := sectionNone
	headerIndent := -1
	seen := map[listSection]map[string]bool{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		switch trimmed {
		case "Targets:":
			section, headerIndent = sectionTargets, indent
			continue
		case "Build Configurations:":
			section, headerIndent = sectionConfigurations, indent
			continue
		case "Schemes:":
			section, headerIndent = sectionSchemes, indent
			continue
		}

		if section == sectionNone || indent <= headerIndent {
			section = sectionNone
			continue
		}
		if seen[section] == nil {
			seen[section] = map[string]bool{}
		}
		if seen[section][trimmed] {
			continue
		}
		seen[section][trimmed] = true

		switch section {
		case sectionTargets:
			listing.Targets = append(listing.Targets, trimmed)
		case sectionConfigurations:
			listing.Configurations = append(listing.Configurations, trimmed)
		case sectionSchemes:
			listing.Schemes = append(listing.Schemes, trimmed)
		}
	}
	return listing
}
