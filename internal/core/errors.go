package core

import "fmt"

// ConfigurationFailure reports a configuration problem detected before the
// application serves any request: a missing secret, an unknown persona,
// an invalid setting. It is always fatal at startup.
type ConfigurationFailure struct {
	Module ModuleID
	Err    error
}

func (e *ConfigurationFailure) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: module %s: %v", e.Module, e.Err)
}

func (e *ConfigurationFailure) Unwrap() error { return e.Err }

// Misconfigured wraps err as a ConfigurationFailure for the given module.
// A nil err yields nil.
func Misconfigured(id ModuleID, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationFailure{Module: id, Err: err}
}
