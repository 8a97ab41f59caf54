// Package buildinfo contains build-time metadata separate from user configuration.
package buildinfo

// Version and BuildDate are injected at build time via ldflags and default
// to development placeholders otherwise.
var (
	Version   = "unknown"
	BuildDate = "unknown"
)

// Context carries build metadata to components that need it, such as
// telemetry release tagging and diagnostics output.
type Context struct {
	Version   string
	BuildDate string
}

// Current returns the build metadata of the running binary.
func Current() Context {
	return Context{
		Version:   Version,
		BuildDate: BuildDate,
	}
}
