package domain

import "net/url"

// Mode is the inference backend selected for the process.
type Mode string

// Backend modes.
const (
	ModeAPI   Mode = "api"
	ModeLocal Mode = "local"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeAPI || m == ModeLocal }

// PoolLimits bound the worker pool of remote-API mode.
const (
	MinPoolSize = 1
	MaxPoolSize = 20

	DefaultPoolSize = 5
)

// ClampPoolSize bounds n to [MinPoolSize, MaxPoolSize].
func ClampPoolSize(n int) int {
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

// IsLocalEndpoint reports whether rawURL points at this machine, where an
// inference server usually runs without an API key.
func IsLocalEndpoint(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}
	return false
}
