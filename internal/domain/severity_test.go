package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeveritySevere, ParseSeverity("SEVERE"))
	assert.Equal(t, SeveritySevere, ParseSeverity(" severe "))
	assert.Equal(t, SeverityModerate, ParseSeverity("Moderate"))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityLow, ParseSeverity("critical"), "unrecognized labels keep the finding at LOW")
	assert.Equal(t, SeverityLow, ParseSeverity(""))
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeveritySevere > SeverityModerate)
	assert.True(t, SeverityModerate > SeverityLow)
	assert.True(t, SeverityLow > SeverityUnknown)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "SEVERE", SeveritySevere.String())
	assert.Equal(t, "MODERATE", SeverityModerate.String())
	assert.Equal(t, "LOW", SeverityLow.String())
	assert.Equal(t, "UNKNOWN", SeverityUnknown.String())
}

func TestSeverityValid(t *testing.T) {
	assert.True(t, SeveritySevere.Valid())
	assert.True(t, SeverityLow.Valid())
	assert.False(t, SeverityUnknown.Valid())
	assert.False(t, Severity(42).Valid())
}
