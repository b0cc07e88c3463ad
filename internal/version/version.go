package version

import (
	"regexp"
	"runtime/debug"
	"strings"
)

var pseudoVersionSuffix = regexp.MustCompile(`\d{14}-[0-9a-f]{12}(\+[0-9A-Za-z.-]+)?$`)

// Set at link time with -ldflags "-X github.com/fmueller/elongate/internal/version.Version=...".
var (
	Version = "0.3.0"
	Commit  = ""
)

// Resolve returns the release version, suffixed with the short VCS revision
// (and "-dirty") when the binary was not built from a tagged release.
func Resolve() string {
	return resolveVersion(Version, Commit, debug.ReadBuildInfo)
}

func resolveVersion(base, commit string, readInfo func() (*debug.BuildInfo, bool)) string {
	if base == "" {
		base = "0.0.0"
	}

	revision, modified := commit, false
	if info, ok := readInfo(); ok && info != nil {
		if v := strings.TrimPrefix(info.Main.Version, "v"); v != "" && v != "(devel)" && !pseudoVersionSuffix.MatchString(v) {
			return v
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if revision == "" {
					revision = setting.Value
				}
			case "vcs.modified":
				modified = setting.Value == "true"
			}
		}
	}

	if revision == "" {
		return base
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified {
		revision += "-dirty"
	}
	return base + "-" + revision
}
