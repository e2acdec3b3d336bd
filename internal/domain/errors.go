package domain

import "errors"

var (
	// ErrValidation indicates malformed or missing request input.
	ErrValidation = errors.New("invalid input")
	// ErrContestNotFound is returned when the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")
	// ErrContestInactive is returned when registering into a contest that is not open.
	ErrContestInactive = errors.New("contest is not active")
	// ErrInvalidSlot indicates a slot ID outside the fixed slot table.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrSlotFull is returned when a slot has no seats left; callers should retry another slot.
	ErrSlotFull = errors.New("slot is full")
	// ErrDuplicateRegistration indicates the identity already holds a booking for this contest.
	ErrDuplicateRegistration = errors.New("already registered for this contest")
	// ErrBookingNotFound is returned when a booking ID resolves to nothing.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrSubmissionNotFound indicates no submission record exists for a booking.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrNoQuestionsResolved indicates none of the submitted question IDs matched the server question set.
	ErrNoQuestionsResolved = errors.New("no questions resolved for submission")
	// ErrInvalidExamDate indicates an exam date that is not a YYYY-MM-DD civil date.
	ErrInvalidExamDate = errors.New("invalid exam date")
	// ErrTokenInvalid indicates a result token that is unknown, expired, or already used.
	ErrTokenInvalid = errors.New("token invalid or already used")
	// ErrPaymentUpstream indicates the payment gateway could not be reached or returned garbage.
	ErrPaymentUpstream = errors.New("payment gateway error")
)
