package analyzer

import (
	"fmt"
	"strings"

	"github.com/saikrishnan/promptlens/internal/config"
)

// ConfigurationError means no providers were configured at all. It is never
// retried and surfaces immediately.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// ProviderUnavailableError means every candidate in the priority list failed
// its availability check. It records which identities were tried so the
// caller can tell the user what to start or configure.
type ProviderUnavailableError struct {
	Tried []config.ProviderType
}

func (e *ProviderUnavailableError) Error() string {
	names := make([]string, len(e.Tried))
	for i, t := range e.Tried {
		names[i] = string(t)
	}
	return fmt.Sprintf("no provider available (tried: %s)", strings.Join(names, ", "))
}
