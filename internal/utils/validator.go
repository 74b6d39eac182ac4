// Package utils provides recipient and scheduling validation shared by the
// message models and the ingress layer.
package utils

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidPhoneNumber = errors.New("invalid phone number format")
	ErrInvalidEmail       = errors.New("invalid email address format")
	ErrInvalidSchedule    = errors.New("invalid schedule time")

	phoneNumberPattern = `^\+[1-9]\d{1,14}$`
	emailPattern       = `^[^\s@]+@[^\s@]+\.[^\s@]+$`

	// MaxScheduleWindow bounds how far in the future a message may be
	// scheduled; the retry loop's scheduler pass only looks this far ahead.
	MaxScheduleWindow = 30 * 24 * time.Hour

	compiledRegexCache sync.Map
)

func getCompiledRegex(pattern string) (*regexp.Regexp, error) {
	if compiled, ok := compiledRegexCache.Load(pattern); ok {
		return compiled.(*regexp.Regexp), nil
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	compiledRegexCache.Store(pattern, compiled)
	return compiled, nil
}

// ValidatePhoneNumber checks a WhatsApp recipient against E.164 format.
func ValidatePhoneNumber(phoneNumber string) error {
	if phoneNumber == "" {
		return errors.Wrap(ErrInvalidPhoneNumber, "phone number cannot be empty")
	}

	regex, err := getCompiledRegex(phoneNumberPattern)
	if err != nil {
		return err
	}
	if !regex.MatchString(phoneNumber) {
		return errors.Wrap(ErrInvalidPhoneNumber, "must match E.164 format, e.g. +15551234567")
	}
	return nil
}

// ValidateEmailAddress checks an email recipient or from-address.
func ValidateEmailAddress(address string) error {
	if address == "" {
		return errors.Wrap(ErrInvalidEmail, "address cannot be empty")
	}

	regex, err := getCompiledRegex(emailPattern)
	if err != nil {
		return err
	}
	if !regex.MatchString(address) || strings.Contains(address, "..") {
		return errors.Wrap(ErrInvalidEmail, address)
	}
	return nil
}

// ValidateScheduledTime rejects schedule times in the past or further out
// than MaxScheduleWindow.
func ValidateScheduledTime(scheduleTime time.Time) error {
	now := time.Now()

	if scheduleTime.Before(now) {
		return errors.Wrap(ErrInvalidSchedule, "cannot schedule a message in the past")
	}
	if scheduleTime.Sub(now) > MaxScheduleWindow {
		return errors.Wrap(ErrInvalidSchedule, "schedule time exceeds the maximum allowed window")
	}
	return nil
}
