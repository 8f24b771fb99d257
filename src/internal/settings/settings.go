package settings

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lglsync/src/internal/core"
	"lglsync/src/internal/metrics"

	"github.com/lixenwraith/log"
)

// BlobStore persists the settings bag as one serialized blob under a
// single key.
type BlobStore interface {
	GetSettingsBlob() ([]byte, error)
	PutSettingsBlob(data []byte) error
}

// Service owns the settings bag: schema defaults, validation, the
// persisted blob and the per-environment cache in front of it.
type Service struct {
	// Configuration
	schema map[string]Field

	// Application
	store  BlobStore
	cache  *cache
	logger *log.Logger

	// Runtime
	mu        sync.Mutex   // serializes read-merge-write updates
	activeEnv atomic.Value // string
}

// New creates a settings service backed by the given blob store.
func New(store BlobStore, cacheTTL time.Duration, logger *log.Logger) *Service {
	s := &Service{
		schema: Schema(),
		store:  store,
		cache:  newCache(cacheTTL),
		logger: logger,
	}
	s.activeEnv.Store("")
	return s
}

// Load returns the full settings map: schema defaults overlaid with
// stored values. Results are cached per environment until the next
// write or TTL expiry.
func (s *Service) Load() (map[string]any, error) {
	if env, _ := s.activeEnv.Load().(string); env != "" {
		if data, ok := s.cache.get(env); ok {
			metrics.SettingsCacheHits.Inc()
			return data, nil
		}
	}
	metrics.SettingsCacheMisses.Inc()

	data, err := s.loadFromStore()
	if err != nil {
		return nil, err
	}

	env := core.NormalizeEnvironment(asString(data["environment"]))
	s.activeEnv.Store(env)
	s.cache.set(env, data)
	return data, nil
}

func (s *Service) loadFromStore() (map[string]any, error) {
	data := make(map[string]any, len(s.schema))
	for key, field := range s.schema {
		data[key] = field.Default
	}

	blob, err := s.store.GetSettingsBlob()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings blob: %w", err)
	}
	if len(blob) == 0 {
		return data, nil
	}

	var stored map[string]any
	if err := json.Unmarshal(blob, &stored); err != nil {
		s.logger.Warn("msg", "Corrupt settings blob, using defaults",
			"component", "settings",
			"error", err)
		return data, nil
	}

	// Unknown stored keys are ignored; known values are normalized
	// through their sanitizer so types survive JSON round-trips.
	for key, value := range stored {
		field, known := s.schema[key]
		if !known {
			continue
		}
		if field.Sanitize != nil {
			value = field.Sanitize(value)
		}
		data[key] = value
	}

	return data, nil
}

// Validate runs schema validation over input without persisting
// anything. Every rule violation appends a message under its field key.
func (s *Service) Validate(input map[string]any) *core.ValidationResult {
	vr := core.NewValidationResult()

	for key, raw := range input {
		field, known := s.schema[key]
		if !known {
			vr.AddError(key, "unknown setting")
			continue
		}

		value := raw
		if field.Sanitize != nil {
			value = field.Sanitize(raw)
		}
		for _, rule := range field.Rules {
			if err := rule(value); err != nil {
				vr.AddError(key, err.Error())
			}
		}
	}

	return vr
}

// Update validates input and, when valid, merges the sanitized values
// into the stored blob. The cache is deleted on every successful write.
// An invalid result is returned to the caller and nothing is persisted.
func (s *Service) Update(input map[string]any) (*core.ValidationResult, error) {
	vr := s.Validate(input)
	if !vr.Valid {
		return vr, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]any)
	blob, err := s.store.GetSettingsBlob()
	if err != nil {
		return vr, fmt.Errorf("failed to read settings blob: %w", err)
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &current); err != nil {
			s.logger.Warn("msg", "Replacing corrupt settings blob",
				"component", "settings",
				"error", err)
			current = make(map[string]any)
		}
	}

	// Drop keys no longer in the schema, then overlay sanitized input.
	for key := range current {
		if _, known := s.schema[key]; !known {
			delete(current, key)
		}
	}
	for key, raw := range input {
		field := s.schema[key]
		value := raw
		if field.Sanitize != nil {
			value = field.Sanitize(raw)
		}
		current[key] = value
	}

	data, err := json.Marshal(current)
	if err != nil {
		return vr, fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := s.store.PutSettingsBlob(data); err != nil {
		return vr, fmt.Errorf("failed to persist settings: %w", err)
	}

	// Delete-on-write invalidation
	s.cache.purge()
	metrics.SettingsCacheInvalidations.Inc()
	if env, ok := current["environment"]; ok {
		s.activeEnv.Store(core.NormalizeEnvironment(asString(env)))
	}

	s.logger.Info("msg", "Settings updated",
		"component", "settings",
		"keys", len(input))

	return vr, nil
}

// Environment returns the active environment, defaulting to live when
// the key is unset or carries an unknown value.
func (s *Service) Environment() string {
	data, err := s.Load()
	if err != nil {
		return core.EnvLive
	}
	return core.NormalizeEnvironment(asString(data["environment"]))
}

// Resolve looks up baseKey by precedence: the {env}_{baseKey} value when
// non-empty, else the legacy unprefixed value when non-empty, else the
// registered fallback constant (empty string when none is registered).
func (s *Service) Resolve(baseKey string) string {
	data, err := s.Load()
	if err != nil {
		return fallbacks[baseKey]
	}
	env := core.NormalizeEnvironment(asString(data["environment"]))

	if v := asString(data[env+"_"+baseKey]); v != "" {
		return v
	}
	if v := asString(data[baseKey]); v != "" {
		return v
	}
	return fallbacks[baseKey]
}

// GetString returns a non-resolvable key's value as a string.
func (s *Service) GetString(key string) string {
	data, err := s.Load()
	if err != nil {
		return asString(s.schema[key].Default)
	}
	return asString(data[key])
}

// GetInt returns a non-resolvable key's value as an int.
func (s *Service) GetInt(key string) int {
	data, err := s.Load()
	if err != nil {
		if n, ok := s.schema[key].Default.(int); ok {
			return n
		}
		return 0
	}
	if n, ok := sanitizeInt(data[key]).(int); ok {
		return n
	}
	return 0
}

// GetBool returns a non-resolvable key's value as a bool.
func (s *Service) GetBool(key string) bool {
	data, err := s.Load()
	if err != nil {
		b, _ := s.schema[key].Default.(bool)
		return b
	}
	if b, ok := sanitizeBool(data[key]).(bool); ok {
		return b
	}
	return false
}

// Redacted returns the settings map with secret values masked for API
// output.
func (s *Service) Redacted() (map[string]any, error) {
	data, err := s.Load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(data))
	for key, value := range data {
		if s.schema[key].Secret && asString(value) != "" {
			out[key] = "********"
			continue
		}
		out[key] = value
	}
	return out, nil
}

// PurgeCache drops all cached settings. Wired to SIGHUP so operators can
// force a re-read after editing the store out of band.
func (s *Service) PurgeCache() {
	s.cache.purge()
	metrics.SettingsCacheInvalidations.Inc()
	s.logger.Info("msg", "Settings cache purged", "component", "settings")
}

// GetStats returns settings statistics.
func (s *Service) GetStats() map[string]any {
	env, _ := s.activeEnv.Load().(string)

	s.cache.mu.RLock()
	cachedEnvs := len(s.cache.entries)
	s.cache.mu.RUnlock()

	return map[string]any{
		"environment": core.NormalizeEnvironment(env),
		"schema_keys": len(s.schema),
		"cached_envs": cachedEnvs,
	}
}
