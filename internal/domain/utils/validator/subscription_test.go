package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{" user@example.com ", true},
		{"first.last+plex@mail.example.org", true},
		{"", false},
		{"user", false},
		{"user@", false},
		{"two@example.com three@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.email))
		})
	}
}

func TestUserID(t *testing.T) {
	assert.True(t, UserID("123456789"))
	assert.True(t, UserID(" 42 "))
	assert.False(t, UserID(""))
	assert.False(t, UserID("abc"))
	assert.False(t, UserID("-5"))
}
