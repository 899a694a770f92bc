package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// captureOutput captures command output while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := stdout
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = orig }()

	err := fn()
	return buf.String(), err
}

// resetFlags restores the global flags between test cases
func resetFlags(asJSON bool) {
	quiet = false
	verbose = false
	jsonOut = asJSON
}

// assertJSON checks that output is valid JSON and returns it decoded
func assertJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
	return result
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
