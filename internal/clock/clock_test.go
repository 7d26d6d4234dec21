package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	m := NewManual(at)
	assert.Equal(t, time.UTC, m.Now().Location())
	assert.True(t, m.Now().Equal(at))

	m.Advance(90 * time.Minute)
	assert.True(t, m.Now().Equal(at.Add(90*time.Minute)))

	m.Set(at.Add(-time.Hour))
	assert.True(t, m.Now().Equal(at.Add(-time.Hour)))
}

func TestSystemIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, System{}.Now().Location())
}
