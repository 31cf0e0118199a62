//go:build windows
// +build windows

// File: control/platform_windows.go
// License: Apache-2.0
//
// Windows-specific debug probe registration: only the generic CPU-count
// probe is registered here (affinity.SetAffinity uses
// SetThreadAffinityMask on this platform; see affinity/affinity_windows.go).

package control

import "runtime"

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
