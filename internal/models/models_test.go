package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListingPatchIsEmpty(t *testing.T) {
	assert.True(t, ListingPatch{}.IsEmpty())
	title := "New title"
	assert.False(t, ListingPatch{Title: &title}.IsEmpty())
}

func TestProfilePatchIsEmpty(t *testing.T) {
	assert.True(t, ProfilePatch{}.IsEmpty())
	bio := "hi"
	assert.False(t, ProfilePatch{Bio: &bio}.IsEmpty())
}

func TestAuthSessionActive(t *testing.T) {
	now := time.Now()
	s := &AuthSession{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, s.Active(now))
	assert.False(t, s.Active(now.Add(2*time.Minute)))

	revoked := now
	s.RevokedAt = &revoked
	assert.False(t, s.Active(now))
}
