package utils

import (
	"errors"
	"runtime/debug"
	"time"

	"github.com/Brawl345/remindbot/logger"
)

var log = logger.New("utils")

type (
	VersionInfo struct {
		GoVersion  string
		GoOS       string
		GoArch     string
		Revision   string
		LastCommit time.Time
		DirtyBuild bool
	}
)

func ReadVersionInfo() (VersionInfo, error) {
	buildInfo, ok := debug.ReadBuildInfo()

	if !ok {
		return VersionInfo{}, errors.New("could not read build info")
	}

	versionInfo := VersionInfo{
		GoVersion: buildInfo.GoVersion,
	}

	for _, kv := range buildInfo.Settings {
		switch kv.Key {
		case "GOOS":
			versionInfo.GoOS = kv.Value
		case "GOARCH":
			versionInfo.GoArch = kv.Value
		case "vcs.revision":
			versionInfo.Revision = kv.Value
		case "vcs.time":
			versionInfo.LastCommit, _ = time.Parse(time.RFC3339, kv.Value)
		case "vcs.modified":
			versionInfo.DirtyBuild = kv.Value == "true"
		}
	}

	return versionInfo, nil
}

// LoadTimezone returns the named location, falling back to UTC.
func LoadTimezone(name string) *time.Location {
	timezone, err := time.LoadLocation(name)
	if err != nil {
		log.Err(err).Str("timezone", name).Msg("Failed to load timezone, using UTC")
		timezone = time.UTC
	}
	return timezone
}
