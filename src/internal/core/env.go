package core

// Deployment environments for settings resolution
const (
	EnvDev  = "dev"
	EnvLive = "live"
)

// NormalizeEnvironment maps empty or unknown environment names to live.
func NormalizeEnvironment(env string) string {
	switch env {
	case EnvDev, EnvLive:
		return env
	default:
		return EnvLive
	}
}
