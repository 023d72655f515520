package instance

import "github.com/SpeechifyInc/analytics-go/pkg/env"

// GetID returns the emitter instance identifier or a default value.
func GetID() string {
	return env.Get("ANALYTICS_INSTANCE_ID", "emitter-0")
}

// GetInstallKey returns the key that scopes persisted identity state.
func GetInstallKey() string {
	return env.Get("ANALYTICS_INSTALL_KEY", "default")
}
