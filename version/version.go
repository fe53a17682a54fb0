// Package version reports the build version of the wavesynth commands.
package version

import "runtime/debug"

// Version is set at build time, for example:
//
//	go build -ldflags "-X github.com/vsariola/wavesynth/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short VCS revision the binary was built from, suffixed with
// -dirty for modified trees, or empty when unknown.
var Hash = vcsHash(debug.ReadBuildInfo())

// VersionOrHash is Version when set, otherwise Hash.
var VersionOrHash = orHash(Version, Hash)

func vcsHash(info *debug.BuildInfo, ok bool) string {
	if !ok {
		return ""
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

func orHash(version, hash string) string {
	if version != "" {
		return version
	}
	return hash
}
