package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathNavigation(t *testing.T) {
	tests := []struct {
		field, raw string
		want       string
	}{
		{"publisher", "penguin-random-house", "penguin random house"},
		{"publisher", "caf%C3%A9-books", "café books"},
		{"author", "Ursula%20K.%20Le%20Guin", "Ursula K. Le Guin"},
		{"year", "1999", "1999"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			nav, err := NewPathNavigation(tt.field, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.field, nav.Field)
			assert.Equal(t, tt.want, nav.Value)
			assert.True(t, nav.HasPath())
		})
	}

	_, err := NewPathNavigation("publisher", "bad%zzescape")
	assert.Error(t, err)
}

func TestNavigationKinds(t *testing.T) {
	assert.False(t, NewQueryNavigation("dune").HasPath())
	assert.False(t, Navigation{}.HasPath())
	assert.Equal(t, "defaults", Navigation{}.String())
	assert.Equal(t, `query "dune"`, NewQueryNavigation("dune").String())
}

func TestSlugNavigation(t *testing.T) {
	nav := NewSlugNavigation(" publisher ", "50%-off-press")
	assert.Equal(t, Navigation{Field: "publisher", Value: "50% off press"}, nav)
}
