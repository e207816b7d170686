package core

// ModuleID is the unique, dot-namespaced identifier of a module
// (e.g. "store.sqlite", "channel.slack").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the module identifier used as key in the configuration file.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every component that participates in the
// application lifecycle.
type Module interface {
	ModuleInfo() ModuleInfo
}
