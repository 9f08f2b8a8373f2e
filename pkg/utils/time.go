package utils

import "time"

// Timestamp returns the current wall-clock time formatted for the wire.
// The fabric only assigns timestamps to messages it originates; relayed
// client timestamps are preserved upstream.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ParseDurationSafe safely parses duration string
func ParseDurationSafe(s string, defaultDuration time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultDuration
	}
	return d
}
