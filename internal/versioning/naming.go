package versioning

import (
	"path/filepath"
	"strings"
	"time"
)

// BuildDateLayout formats BUILD_DATE in artifact names.
const BuildDateLayout = "2006.01.02"

// NameVars are the values available to artifact name patterns.
type NameVars struct {
	BaseName  string
	Version   Info
	BuildDate time.Time
}

// BundleBaseName strips the .app extension and replaces spaces with underscores.
func BundleBaseName(appPath string) string {
	name := strings.TrimSuffix(filepath.Base(appPath), ".app")
	return strings.ReplaceAll(name, " ", "_")
}

// ArtifactBaseName computes the artifact base name. Without a pattern it is
// BaseName followed by "-<marketing>" and "-<build>" for each known value.
// A pattern may reference BASE_NAME, VERSION, SHORT_VERSION and BUILD_DATE as
// {NAME} or ${NAME}.
func ArtifactBaseName(vars NameVars, pattern string) string {
	if pattern == "" {
		name := vars.BaseName
		if vars.Version.MarketingVersion != "" {
			name += "-" + vars.Version.MarketingVersion
		}
		if vars.Version.BuildNumber != "" {
			name += "-" + vars.Version.BuildNumber
		}
		return name
	}

	values := map[string]string{
		"BASE_NAME":     vars.BaseName,
		"VERSION":       vars.Version.BuildNumber,
		"SHORT_VERSION": vars.Version.MarketingVersion,
		"BUILD_DATE":    vars.BuildDate.Format(BuildDateLayout),
	}
	pairs := make([]string, 0, len(values)*4)
	for k, v := range values {
		pairs = append(pairs, "${"+k+"}", v, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}
