package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBands(t *testing.T) {
	b := Bands{Entry: 0.02, Trail: 0.004}

	assert.Equal(t, 1020.0, b.EntryUpper(1000))
	assert.Equal(t, 980.0, b.EntryLower(1000))
	assert.Equal(t, 1004.0, b.TrailUpper(1000))
	assert.Equal(t, 996.0, b.TrailLower(1000))

	// трейлинговые границы округляются до целого
	assert.Equal(t, 45280.0, b.TrailUpper(45100)) // 45280.4
	assert.Equal(t, 44920.0, b.TrailLower(45100)) // 44919.6

	// входные полосы остаются дробными
	assert.InDelta(t, 20425.5, b.EntryUpper(20025), 1e-9)
	assert.InDelta(t, 19624.5, b.EntryLower(20025), 1e-9)
}

func TestEntryBandWiderThanTrail(t *testing.T) {
	b := Bands{Entry: 0.02, Trail: 0.004}
	assert.Greater(t, b.EntryUpper(1000), b.TrailUpper(1000))
	assert.Less(t, b.EntryLower(1000), b.TrailLower(1000))
}
