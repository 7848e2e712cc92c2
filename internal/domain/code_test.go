package domain

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^EVT-[0-9A-F]{8}$`)

	for i := 0; i < 100; i++ {
		code := NewBookingCode()
		require.Regexp(t, re, code)
	}
}

func TestNewBookingCode_Unique(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		code := NewBookingCode()
		_, dup := seen[code]
		assert.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}
