package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhoneNumber(t *testing.T) {
	assert.NoError(t, ValidatePhoneNumber("+15551234567"))
	assert.Error(t, ValidatePhoneNumber(""))
	assert.Error(t, ValidatePhoneNumber("5551234567"))
	assert.Error(t, ValidatePhoneNumber("not-a-number"))
}

func TestValidateEmailAddress(t *testing.T) {
	assert.NoError(t, ValidateEmailAddress("a@b.com"))
	assert.Error(t, ValidateEmailAddress(""))
	assert.Error(t, ValidateEmailAddress("not-an-email"))
	assert.Error(t, ValidateEmailAddress("a@b..com"))
}

func TestValidateScheduledTime(t *testing.T) {
	assert.Error(t, ValidateScheduledTime(time.Now().Add(-time.Minute)))
	assert.NoError(t, ValidateScheduledTime(time.Now().Add(time.Hour)))
	assert.Error(t, ValidateScheduledTime(time.Now().Add(MaxScheduleWindow+time.Hour)))
}
