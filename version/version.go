package version

import "runtime/debug"

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = AgridashSemVer
)

func init() {
	if GitCommit == "" {
		GitCommit = vcsRevision()
	}
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// AgridashSemVer is the current version of agridash.
	// It's the Semantic Version of the software.
	// Must be a string because scripts like dist.sh read this file.
	AgridashSemVer = "0.3.0"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit,omitempty"`
	GoVersion string `json:"goVersion"`
}

// Get returns the version information of the running binary.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
	}
	return info
}

// vcsRevision returns the short commit the binary was built from, if the Go
// toolchain recorded one.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			return s.Value[:8]
		}
	}
	return ""
}
