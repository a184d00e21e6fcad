package bf

import "github.com/kolkov/bytesflops/internal/bf/abi"

// Version information for the bytesflops runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information.
type Info struct {
	// Version is the runtime version string.
	Version string

	// HookPrefix is the name prefix of every runtime hook.
	HookPrefix string

	// Scalars is the number of named program-wide counters.
	Scalars int
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := bf.GetInfo()
//	fmt.Printf("bytesflops %s (%d counters)\n", info.Version, info.Scalars)
func GetInfo() Info {
	return Info{
		Version:    Version,
		HookPrefix: abi.HookPrefix,
		Scalars:    int(abi.NumScalars),
	}
}
