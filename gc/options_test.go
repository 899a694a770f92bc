package gc_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/gcext/gc"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(gc.EnvWorkers, " 3 ")
	t.Setenv(gc.EnvDisableGenerational, "true")
	t.Setenv(gc.EnvConservative, "1")

	opts, err := gc.OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Workers)
	assert.True(t, opts.DisableGenerational)
	assert.True(t, opts.ConservativeScanning)
	assert.Equal(t, gc.DefaultOptions().PageSize, opts.PageSize)
}

func TestOptionsFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"non-numeric workers", gc.EnvWorkers, "many"},
		{"zero workers", gc.EnvWorkers, "0"},
		{"bad bool", gc.EnvConservative, "sometimes"},
		{"bad generational", gc.EnvDisableGenerational, "yes please"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := gc.OptionsFromEnv()
			assert.True(t, errors.Is(err, gc.ErrInvalidOptions), "got %v", err)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := gc.DefaultOptions()
	assert.Positive(t, opts.Workers)
	assert.Equal(t, "Balanced", opts.SizeClasses.Name)
	assert.Equal(t, 2, opts.PromoteAge)
	assert.Equal(t, 8, opts.FullEvery)
	assert.Zero(t, opts.CollectInterval, "automatic collection is opt-in")

	c, err := gc.New(nil, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, uintptr(2048), c.MaxInternalObjSize())
	assert.NotNil(t, c.Options().ExternalMemory)
}
