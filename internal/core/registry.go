package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// registry holds the broker modules compiled into the binary, keyed by the
// ID operators use under "modules:" in hlbroker.yaml.
var (
	registry   = make(map[ModuleID]ModuleInfo)
	registryMu sync.RWMutex
)

// Namespace returns the part of the ID before the first dot ("store" for
// "store.sqlite").
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// RegisterModule makes a broker module available to the config loader. It
// is meant for init functions and panics on a duplicate ID or an ID that is
// not of the namespace.name form.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	ns, name, ok := strings.Cut(string(info.ID), ".")
	if !ok || ns == "" || name == "" {
		panic(fmt.Sprintf("core: module ID %q must look like namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry[info.ID] = info
}

// GetModule looks up a registered module by its config key.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[ModuleID(id)]
	return info, ok
}

// GetModules lists every registered module ordered by ID, as printed by
// "hlbroker version".
func GetModules() []ModuleInfo {
	return listModules(func(ModuleID) bool { return true })
}

// GetModulesByNamespace lists the registered modules of one kind, for
// example every "store" backend.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return listModules(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func listModules(keep func(ModuleID) bool) []ModuleInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []ModuleInfo
	for _, id := range slices.Sorted(maps.Keys(registry)) {
		if keep(id) {
			out = append(out, registry[id])
		}
	}
	return out
}

// resetRegistry empties the registry between tests.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	clear(registry)
}
