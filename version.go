package marketplace

// Version information for the marketplace service. The variables are
// overridden at build time with -ldflags "-X".
var (
	// Version is the current service version
	Version = "development"

	// APIVersion is the current HTTP API version
	APIVersion = "v1"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
