package version

// Build metadata, injected at release time:
//
//	go build -ldflags "-X github.com/pysugar/relay-checkin/internal/version.Version=v1.0.0"
var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the git revision the binary was built from.
	Commit = "none"

	// BuildTime is when the binary was produced.
	BuildTime = "unknown"
)
