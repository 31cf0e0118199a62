//go:build linux
// +build linux

// File: control/platform_linux.go
// License: Apache-2.0
//
// Linux-specific debug probe registration.

package control

import "runtime"

// RegisterPlatformProbes sets Linux-specific debug metrics: CPU count
// for affinity.SetAffinity sizing and the Go scheduler's GOMAXPROCS, useful when
// diagnosing whether the IO-core goroutine is contending for a core.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
