package logger

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/taint-io/pkg/shared/config"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		cfgLevel string
		expected hclog.Level
	}{
		{name: "default", expected: hclog.Info},
		{name: "from config", cfgLevel: "debug", expected: hclog.Debug},
		{name: "env wins", env: "error", cfgLevel: "debug", expected: hclog.Error},
		{name: "unknown level", cfgLevel: "loud", expected: hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tt.env)
			cfg := &config.Config{Logger: config.Logger{Level: tt.cfgLevel}}
			assert.Equal(t, tt.expected, determineLogLevel(cfg))
		})
	}
}

func TestDetermineLogLevelNilConfig(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, hclog.Info, determineLogLevel(nil))
}
