package config

// StoreConfig locates the embedded key-value store.
type StoreConfig struct {
	Path string `toml:"path"`
}
