package fal

import "time"

// Config holds the settings for the fal.ai client.
type Config struct {
	// BaseURL is the synchronous run endpoint root.
	BaseURL string
	// Model is the application path appended to BaseURL.
	Model string
	// APIKey is sent as "Authorization: Key <APIKey>".
	APIKey string
	// Timeout bounds one whole request, including reading the response.
	Timeout time.Duration
	// SafetyTolerance is passed through to the model (1 strictest .. 6).
	SafetyTolerance string
}

// DefaultConfig returns settings for fal-ai/flux-pro with a two minute bound.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://fal.run",
		Model:           "fal-ai/flux-pro",
		Timeout:         2 * time.Minute,
		SafetyTolerance: "5",
	}
}
