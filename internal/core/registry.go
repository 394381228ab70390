package core

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownModule is returned when a module ID has no registered constructor.
var ErrUnknownModule = errors.New("unknown module")

// registry is the static name -> constructor table. Modules add themselves
// from init(); nothing is registered after main starts.
var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule registers a module by reading its ModuleInfo.
// It panics on an empty ID, a nil constructor or a duplicate ID.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()

	if _, exists := registry.byID[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// LookupModule is GetModule with an error suitable for returning to the user.
func LookupModule(id string) (ModuleInfo, error) {
	info, ok := GetModule(id)
	if !ok {
		return ModuleInfo{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	return info, nil
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return filterModules(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace, sorted by ID
// ("provider" matches "provider.openai" and "provider.gemini").
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return filterModules(func(info ModuleInfo) bool {
		return info.ID.Namespace() == namespace && info.ID.Name() != string(info.ID)
	})
}

func filterModules(keep func(ModuleInfo) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var result []ModuleInfo
	for _, info := range registry.byID {
		if keep(info) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
