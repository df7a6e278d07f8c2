package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/roach88/shelf/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// ClientVersion is the semantic version of this client.
	ClientVersion = "0.1.0"

	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s) %s/%s", ClientVersion, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the User-Agent sent to the release feed.
func UserAgent() string {
	return "shelf/" + ClientVersion
}

// CheckClientCompatibility reports whether this client satisfies a
// package's declared minimum client version. An empty minimum always
// passes.
func CheckClientCompatibility(minVersion string) error {
	return checkCompatibility(ClientVersion, minVersion)
}

func checkCompatibility(current, minVersion string) error {
	if minVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum client version %q: %w", minVersion, err)
	}

	v, err := semver.NewVersion(current)
	if err != nil {
		return fmt.Errorf("invalid client version %q: %w", current, err)
	}

	if !constraint.Check(v) {
		return fmt.Errorf("client version %s is older than required %s", current, minVersion)
	}
	return nil
}
