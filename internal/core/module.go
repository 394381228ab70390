// Package core provides the module system chatrelay is assembled from:
// a static registry of module constructors, the provisioning lifecycle and
// the shared AppContext handed to every module.
package core

// ModuleID is the dotted identifier of a module, e.g. "provider.openai".
// The part before the first dot is its namespace.
type ModuleID string

// Namespace returns the namespace prefix of the ID ("provider" for
// "provider.openai"), or the whole ID when it has no dot.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// Name returns the part after the namespace ("openai" for "provider.openai").
func (id ModuleID) Name() string {
	ns := id.Namespace()
	if len(ns) == len(id) {
		return string(id)
	}
	return string(id[len(ns)+1:])
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every chatrelay module.
type Module interface {
	ModuleInfo() ModuleInfo
}
