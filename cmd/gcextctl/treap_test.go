package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreapCommand(t *testing.T) {
	tests := []struct {
		name        string
		opts        treapOptions
		detailed    bool
		wantErr     bool
		wantJSON    bool
		wantContain []string
	}{
		{
			name:        "dense slots",
			opts:        treapOptions{Ops: 20_000, Slots: 64, Seed: 1, CheckEvery: 100},
			wantContain: []string{"Inserts:", "Height:", "passed"},
		},
		{
			name:        "sparse slots",
			opts:        treapOptions{Ops: 20_000, Slots: 8192, Seed: 2},
			wantContain: []string{"Ranges:"},
		},
		{
			name:        "json detailed",
			opts:        treapOptions{Ops: 500, Slots: 16, Seed: 3, CheckEvery: 10, Detailed: true},
			wantJSON:    true,
			wantContain: []string{`"Tracker"`, `"Allocations"`, `"Height"`},
		},
		{
			name:    "no slots",
			opts:    treapOptions{Ops: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(tt.wantJSON)
			treapOpts.Detailed = tt.opts.Detailed
			defer func() { treapOpts.Detailed = false }()

			output, err := captureOutput(t, func() error {
				tr, res, err := runTreap(tt.opts)
				if err != nil {
					return err
				}
				return printTreap(tr, res)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runTreap() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
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

func TestTreapWorkloadExercisesAllPaths(t *testing.T) {
	resetFlags(false)
	tr, res, err := runTreap(treapOptions{Ops: 30_000, Slots: 32, Seed: 9, CheckEvery: 500})
	require.NoError(t, err)

	assert.Positive(t, res.Inserts)
	assert.Positive(t, res.Overlaps, "dense slots must produce rejected inserts")
	assert.Positive(t, res.Deletes)
	assert.Positive(t, res.Hits)
	assert.Equal(t, 30_000/500+1, res.Checks)
	require.NoError(t, tr.Check())
	assert.Equal(t, res.Inserts-res.Deletes, tr.Len())
}

func TestRangeModel(t *testing.T) {
	m := newRangeModel(0)
	m.add(100, 50)
	m.add(4096+10, 5000)

	a, ok := m.find(120)
	require.True(t, ok)
	assert.Equal(t, uintptr(100), a)
	_, ok = m.find(150)
	assert.False(t, ok, "end is exclusive")

	a, ok = m.find(2*4096 + 100)
	require.True(t, ok, "range spills into the next slot")
	assert.Equal(t, uintptr(4096+10), a)

	_, ok = m.overlapping(140, 20)
	assert.True(t, ok)
	_, ok = m.overlapping(150, 10)
	assert.False(t, ok)

	assert.True(t, m.remove(100))
	assert.False(t, m.remove(100))
	_, ok = m.find(120)
	assert.False(t, ok)
}
