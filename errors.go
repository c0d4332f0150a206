package keel

import "errors"

// Application errors
var (
	// Configuration errors
	ErrConfigSectionNotFound  = errors.New("config section not found")
	ErrConfigProviderNil      = errors.New("config provider is nil")
	ErrConfigNil              = errors.New("config is nil")
	ErrConfigNotPointer       = errors.New("config must be a pointer")
	ErrConfigNotStruct        = errors.New("config must be a struct")
	ErrConfigRequiredMissing  = errors.New("required field is missing")
	ErrConfigValidationFailed = errors.New("config validation failed")
	ErrUnsupportedDefaultType = errors.New("unsupported type for default value")

	// Service registry errors
	ErrServiceAlreadyRegistered = errors.New("service already registered")
	ErrServiceNotFound          = errors.New("service not found")
	ErrTargetNotPointer         = errors.New("target must be a non-nil pointer")
	ErrServiceIncompatible      = errors.New("service cannot be assigned to target")

	// Module lifecycle errors
	ErrModuleAlreadyRegistered = errors.New("module already registered")
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrModuleDependencyMissing = errors.New("module depends on non-existent module")
	ErrRequiredServiceNotFound = errors.New("required service not found for module")
	ErrModuleNotRegistered     = errors.New("module not registered")
)
