package recurrence

// Config holds configuration options for a Calculator
type Config struct {
	CacheEnabled bool
	CacheConfig  CacheConfig
}

// DefaultConfig caches results with DefaultCacheConfig
var DefaultConfig = Config{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = Config{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             DefaultCacheConfig.TTL / 3,
		MaxEntries:      100,
		CleanupInterval: DefaultCacheConfig.CleanupInterval / 2,
	},
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = Config{
	CacheEnabled: false,
}
