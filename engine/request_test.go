package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isdmx/sandboxrunner/isolate"
)

func TestRequestNormalizedTestsDefaultsToSingleEmptyTest(t *testing.T) {
	req := Request{}
	tests := req.normalizedTests()
	assert.Equal(t, []Test{{}}, tests)
}

func TestRequestNormalizedTestsPreservesDeclared(t *testing.T) {
	req := Request{Tests: []Test{{Name: "first"}, {Name: "second", Fatal: true}}}
	tests := req.normalizedTests()
	assert.Equal(t, req.Tests, tests)
	assert.Len(t, tests, 2)
}

func TestMergeLimitsOverlaysNonZeroFields(t *testing.T) {
	base := isolate.Limits{
		WallTimeSec:      10,
		CPUTimeSec:       5,
		MemoryKB:         1024,
		MaxProcesses:     1,
		StdoutLimitBytes: 4096,
	}
	override := isolate.Limits{
		WallTimeSec: 20,
		MemoryKB:    2048,
	}

	merged := mergeLimits(base, override)

	assert.Equal(t, 20.0, merged.WallTimeSec)
	assert.Equal(t, int64(2048), merged.MemoryKB)
	// Untouched fields inherit from base.
	assert.Equal(t, 5.0, merged.CPUTimeSec)
	assert.Equal(t, 1, merged.MaxProcesses)
	assert.Equal(t, 4096, merged.StdoutLimitBytes)
}

func TestMergeLimitsZeroOverrideInheritsBase(t *testing.T) {
	base := isolate.Limits{WallTimeSec: 10, MemoryKB: 1024}
	merged := mergeLimits(base, isolate.Limits{})
	assert.Equal(t, base, merged)
}
