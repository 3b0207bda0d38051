package builder

import "runtime/debug"

var (
	// Set at build time with -ldflags "-X 'github.com/idlab-discover/FairDerm-cli/internal/builder.Version=...' -X '...Commit=...'"
	Version = ""
	Commit  = ""
)

var readBuildInfo = debug.ReadBuildInfo

// GetVersion reports the tool version recorded in generated BOMs.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := readBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	if Commit != "" {
		return "commit-" + Commit
	}
	return "devel"
}
