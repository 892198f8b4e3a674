package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("connection refused")

	svc := NewServiceError("exchange", base)
	assert.True(t, IsServiceError(svc))
	assert.ErrorIs(t, svc, base)
	assert.Equal(t, "exchange: connection refused", svc.Error())

	wrapped := fmt.Errorf("turn: %w", svc)
	assert.True(t, IsServiceError(wrapped))
	assert.False(t, IsUsageError(wrapped))

	usage := Usagef("submit turn", "no scenario selected")
	assert.True(t, IsUsageError(usage))
	assert.Equal(t, "submit turn: no scenario selected", usage.Error())

	unsupported := &CapabilityUnsupportedError{Capability: "speech recognition"}
	assert.True(t, IsCapabilityUnsupported(fmt.Errorf("start: %w", unsupported)))
}

func TestNewServiceErrorKeepsConfigurationError(t *testing.T) {
	cfgErr := &ConfigurationError{Op: "open session", Err: errors.New("AI API key is not configured")}

	err := NewServiceError("exchange", cfgErr)
	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsServiceError(err))
	assert.Nil(t, NewServiceError("noop", nil))
}

func TestIsSQLiteConflictError(t *testing.T) {
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table")))
	assert.False(t, IsSQLiteConflictError(nil))
}
