package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palisade-auth/palisade/pkg/logger"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "a****@*******.com", logger.SanitizedEmail("alice@example.com"))
	assert.Equal(t, "b@*******.com", logger.SanitizedEmail("b@example.com"))
	assert.Equal(t, "a****@****.*******.org", logger.SanitizedEmail("alice@mail.example.org"))
	assert.Equal(t, "[invalid-email]", logger.SanitizedEmail("not-an-email"))
	assert.Equal(t, "[invalid-email]", logger.SanitizedEmail("@example.com"))
	assert.Equal(t, "[invalid-email]", logger.SanitizedEmail("alice@"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, logger.SanitizeQueryString("token=abc123"))
	assert.True(t, logger.SanitizeQueryString("reset_PASSWORD=x"))
	assert.True(t, logger.SanitizeQueryString("api_key=plsd_deadbeef"))
	assert.False(t, logger.SanitizeQueryString("page=2&limit=50"))
	assert.False(t, logger.SanitizeQueryString(""))
}
