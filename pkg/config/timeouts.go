package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables controlling turn execution and session eviction.
// Read once at startup.
const (
	EnvSessionIdleHours    = "SESSION_IDLE_HOURS"
	EnvTurnTimeoutSeconds  = "TURN_TIMEOUT_SECONDS"
	EnvAgentTimeoutSeconds = "AGENT_TIMEOUT_SECONDS"
)

const (
	defaultSessionIdleHours    = 24
	defaultTurnTimeoutSeconds  = 60
	defaultAgentTimeoutSeconds = 30
)

// Timeouts bounds turn execution and session lifetime.
type Timeouts struct {
	// SessionIdle is the idle age after which a session is swept.
	SessionIdle time.Duration
	// Turn bounds one full ProcessTurn call.
	Turn time.Duration
	// AgentInvocation bounds a single agent call within a turn.
	AgentInvocation time.Duration
}

// TimeoutsFromEnv reads timeout configuration from the environment,
// falling back to documented defaults for unset variables.
func TimeoutsFromEnv() (*Timeouts, error) {
	idleHours, err := positiveIntEnv(EnvSessionIdleHours, defaultSessionIdleHours)
	if err != nil {
		return nil, err
	}
	turnSeconds, err := positiveIntEnv(EnvTurnTimeoutSeconds, defaultTurnTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	agentSeconds, err := positiveIntEnv(EnvAgentTimeoutSeconds, defaultAgentTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	return &Timeouts{
		SessionIdle:     time.Duration(idleHours) * time.Hour,
		Turn:            time.Duration(turnSeconds) * time.Second,
		AgentInvocation: time.Duration(agentSeconds) * time.Second,
	}, nil
}

// DefaultTimeouts returns the documented defaults without consulting the
// environment. Used by tests and by callers that configure explicitly.
func DefaultTimeouts() *Timeouts {
	return &Timeouts{
		SessionIdle:     defaultSessionIdleHours * time.Hour,
		Turn:            defaultTurnTimeoutSeconds * time.Second,
		AgentInvocation: defaultAgentTimeoutSeconds * time.Second,
	}
}

func positiveIntEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("timeouts", key, "", fmt.Errorf("%w: %q", ErrInvalidValue, raw))
	}
	if value <= 0 {
		return 0, NewValidationError("timeouts", key, "", fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, value))
	}
	return value, nil
}
