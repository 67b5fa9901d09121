package model

import "errors"

var (
	ErrAlreadyExists = errors.New("record already exists")
	ErrNotFound      = errors.New("record not found")
	ErrLimitReached  = errors.New("reminder limit reached")
	ErrUnsupported   = errors.New("operation not supported by platform")

	// Reasons a mention or command does not produce a reminder.
	ErrCommandNotRecognized = errors.New("command not recognized")
	ErrTargetRejected       = errors.New("target is an automated account")
	ErrTimeUnparseable      = errors.New("time expression not understood")
	ErrTooSoon              = errors.New("reminder time is too soon")

	// Delivery failures
	ErrChannelUnavailable = errors.New("private channel unavailable")
	ErrDeliveryFailed     = errors.New("delivery failed")
)
