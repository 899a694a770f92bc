package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimCommand(t *testing.T) {
	tests := []struct {
		name        string
		opts        simOptions
		wantErr     bool
		wantJSON    bool
		wantContain []string
	}{
		{
			name:        "small pool stacks",
			opts:        simOptions{Stacks: 8, Ops: 20_000, Workers: 2, Seed: 1, FullEvery: 3, LargeThreshold: 100, Interval: 16 << 10},
			wantContain: []string{"Pushes:", "Collections:"},
		},
		{
			name:        "external stack data",
			opts:        simOptions{Stacks: 2, Ops: 5_000, Workers: 4, Seed: 7, FullEvery: 2, LargeThreshold: 1000, Interval: 32 << 10},
			wantContain: []string{"Remaining:"},
		},
		{
			name:        "json output",
			opts:        simOptions{Stacks: 4, Ops: 2_000, Workers: 1, Seed: 3, FullEvery: 2, LargeThreshold: 50, Interval: 4 << 10},
			wantJSON:    true,
			wantContain: []string{`"Counters"`, `"Collector"`, `"LastCycle"`},
		},
		{
			name:    "too many stacks",
			opts:    simOptions{Stacks: 5000, Ops: 1, LargeThreshold: 1},
			wantErr: true,
		},
		{
			name:    "zero threshold",
			opts:    simOptions{Stacks: 1, Ops: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(tt.wantJSON)

			output, err := captureOutput(t, func() error {
				res, err := runSim(tt.opts)
				if err != nil {
					return err
				}
				return printSim(res)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runSim() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
				return
			}
			if tt.wantErr {
				return
			}
			if tt.wantJSON {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestSimCollectsAndBalances(t *testing.T) {
	resetFlags(false)
	res, err := runSim(simOptions{
		Stacks: 4, Ops: 30_000, Workers: 2, Seed: 11,
		FullEvery: 2, LargeThreshold: 400, Interval: 8 << 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 30_000, res.Pushes+res.Pops+res.Replaced)
	assert.Positive(t, res.Incremental, "automatic incremental collections")
	// One final explicit full collection on top of the automatic ones.
	assert.GreaterOrEqual(t, res.Full, uint64(2))
	assert.Positive(t, res.Stats.Freed)
}

func TestSimDeterministic(t *testing.T) {
	resetFlags(false)
	o := simOptions{Stacks: 3, Ops: 5_000, Workers: 3, Seed: 42, FullEvery: 2, LargeThreshold: 80, Interval: 4 << 10}
	a, err := runSim(o)
	require.NoError(t, err)
	b, err := runSim(o)
	require.NoError(t, err)

	assert.Equal(t, a.Pushes, b.Pushes)
	assert.Equal(t, a.Pops, b.Pops)
	assert.Equal(t, a.Remaining, b.Remaining)
	assert.Equal(t, a.Full, b.Full)
	assert.Equal(t, a.Incremental, b.Incremental)
}
