// File: control/controller.go
// Package control
// License: Apache-2.0
//
// Controller bundles ConfigStore, MetricsRegistry, and DebugProbes
// behind the single facade.New wires up, folding in what was the
// teacher's adapters/control_adapter.go — minus that file's api.Control
// interface, which belonged to the WS-facing surface this repo drops.

package control

// Controller is the single control-plane handle a facade instance
// exposes: runtime config, metrics, and debug introspection.
type Controller struct {
	Config  *ConfigStore
	Metrics *MetricsRegistry
	Debug   *DebugProbes
}

// NewController constructs a Controller with platform debug probes
// already registered.
func NewController() *Controller {
	c := &Controller{
		Config:  NewConfigStore(),
		Metrics: NewMetricsRegistry(),
		Debug:   NewDebugProbes(),
	}
	RegisterPlatformProbes(c.Debug)
	return c
}

// GetConfig returns a snapshot of the current dynamic configuration.
func (c *Controller) GetConfig() map[string]any {
	return c.Config.GetSnapshot()
}

// SetConfig merges new dynamic values and triggers every registered
// reload hook, both the Controller's own and any process-global ones.
func (c *Controller) SetConfig(cfg map[string]any) {
	c.Config.SetConfig(cfg)
	TriggerHotReload()
}

// Stats returns the dynamic config, metrics, and debug probe state
// merged into one flat map, namespaced by prefix.
func (c *Controller) Stats() map[string]any {
	out := make(map[string]any)
	for k, v := range c.Config.GetSnapshot() {
		out[k] = v
	}
	for k, v := range c.Metrics.GetSnapshot() {
		out["metrics."+k] = v
	}
	for k, v := range c.Debug.DumpState() {
		out["debug."+k] = v
	}
	return out
}

// OnReload registers a callback invoked on configuration changes, both
// instance-scoped and process-global.
func (c *Controller) OnReload(fn func()) {
	c.Config.OnReload(fn)
	RegisterReloadHook(fn)
}

// RegisterDebugProbe registers a named debug probe function.
func (c *Controller) RegisterDebugProbe(name string, fn func() any) {
	c.Debug.RegisterProbe(name, fn)
}
