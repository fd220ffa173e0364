// Package buildinfo holds version data stamped in with -ldflags "-X".
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info reports the stamped values, falling back to the VCS data the Go
// toolchain embeds when -X was not used.
func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go"] = bi.GoVersion
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info["commit"] == "":
				info["commit"] = s.Value
			case s.Key == "vcs.time" && info["builtAt"] == "":
				info["builtAt"] = s.Value
			}
		}
	}
	return info
}
