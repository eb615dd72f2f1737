package cache

// ModuleCacheBuilderOption is a functional option for configuring a ModuleCache via
// NewModuleCache.
type ModuleCacheBuilderOption func(*moduleCache)

// WithNormalizedMacroKeys is an option builder that makes macro sets which differ only
// in order share a cache entry. By default the key is order-sensitive.
//
// Returns:
//   - ModuleCacheBuilderOption: a function that enables macro normalization on a cache
func WithNormalizedMacroKeys() ModuleCacheBuilderOption {
	return func(c *moduleCache) {
		c.normalizeMacros = true
	}
}
