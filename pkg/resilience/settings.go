package resilience

import "time"

// Settings tunes a circuit breaker.
type Settings struct {
	Name string
	// Interval is the cyclic period after which closed-state counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// SuccessThreshold probes are allowed while half-open.
	SuccessThreshold uint32
}

func (s Settings) withDefaults() Settings {
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	return s
}

// BuildSettings produces Settings from env-style knobs. Non-positive values
// fall back to the defaults.
func BuildSettings(name string, interval, timeout time.Duration, failureThreshold, successThreshold int) Settings {
	s := Settings{Name: name, Interval: interval, Timeout: timeout}
	if failureThreshold > 0 {
		s.FailureThreshold = uint32(failureThreshold)
	}
	if successThreshold > 0 {
		s.SuccessThreshold = uint32(successThreshold)
	}
	return s.withDefaults()
}
