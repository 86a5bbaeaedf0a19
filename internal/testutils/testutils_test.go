package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigForTestsAppliesEnvFile(t *testing.T) {
	cfg := ConfigForTests(t)

	// .env.test at the project root pins the history page size.
	assert.Equal(t, 5, cfg.GetHistoryPageSize())
	assert.Equal(t, "memory", cfg.GetDirectoryBackend())
}
