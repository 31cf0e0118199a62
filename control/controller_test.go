// File: control/controller_test.go
// License: Apache-2.0

package control_test

import (
	"testing"
	"time"

	"github.com/clusterkit/dmsgcore/control"
)

func TestControllerSetConfigMergesAndReloads(t *testing.T) {
	c := control.NewController()

	reloaded := make(chan struct{}, 1)
	c.OnReload(func() { reloaded <- struct{}{} })

	c.SetConfig(map[string]any{"label": "iocom-1"})

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatalf("OnReload hook was not dispatched")
	}

	got := c.GetConfig()
	if got["label"] != "iocom-1" {
		t.Fatalf("GetConfig()[label] = %v, want iocom-1", got["label"])
	}
}

func TestControllerStatsMergesConfigMetricsDebug(t *testing.T) {
	c := control.NewController()
	c.Config.SetConfig(map[string]any{"listen": ":7777"})
	c.Metrics.Set("open_states", int64(3))
	c.RegisterDebugProbe("probe.one", func() any { return "ok" })

	stats := c.Stats()
	if stats["listen"] != ":7777" {
		t.Fatalf("stats[listen] = %v", stats["listen"])
	}
	if stats["metrics.open_states"] != int64(3) {
		t.Fatalf("stats[metrics.open_states] = %v", stats["metrics.open_states"])
	}
	if stats["debug.probe.one"] != "ok" {
		t.Fatalf("stats[debug.probe.one] = %v", stats["debug.probe.one"])
	}
}

func TestMetricsRegistryAddAccumulates(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Add("states", 1)
	mr.Add("states", 1)
	mr.Add("states", -1)

	snap := mr.GetSnapshot()
	if snap["states"] != int64(1) {
		t.Fatalf("states = %v, want 1", snap["states"])
	}
}

func TestDefaultConfigHasSaneBuffers(t *testing.T) {
	cfg := control.DefaultConfig()
	if cfg.RxBufSize <= 0 || cfg.TxBufSize <= 0 {
		t.Fatalf("DefaultConfig buffer sizes must be positive: %+v", cfg)
	}
	if cfg.AuxMax == 0 {
		t.Fatalf("DefaultConfig.AuxMax must be nonzero")
	}
	if cfg.Logger == nil {
		t.Fatalf("DefaultConfig.Logger must not be nil")
	}
}
