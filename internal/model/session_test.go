package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{IssuedAt: issued, ExpiresAt: issued.Add(24 * time.Hour)}

	assert.False(t, s.Expired(issued))
	assert.False(t, s.Expired(issued.Add(23*time.Hour)))
	assert.True(t, s.Expired(issued.Add(24*time.Hour)), "expiry instant itself is expired")
	assert.True(t, s.Expired(issued.Add(25*time.Hour)))
}

func TestImageSizeValid(t *testing.T) {
	for _, s := range []ImageSize{"square_hd", "square", "portrait_4_3", "portrait_16_9", "landscape_4_3", "landscape_16_9"} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []ImageSize{"", "SQUARE", "1024x1024", "square_hd "} {
		assert.False(t, s.Valid(), s)
	}
}
