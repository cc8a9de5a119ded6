package domain

import "errors"

var (
	// ErrEmptyPlayerName is returned when a session start is attempted with a
	// blank or whitespace-only name.
	ErrEmptyPlayerName = errors.New("player name must not be empty")
	// ErrInvalidCategory indicates a category outside the closed set.
	ErrInvalidCategory = errors.New("unknown quiz category")
	// ErrSessionNotFound is returned when a session id has no stored record.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrMalformedQuestion indicates generated content that fails the
	// four-distinct-options / one-correct-index invariants.
	ErrMalformedQuestion = errors.New("malformed question")
	// ErrRateLimited mirrors an upstream 429 from the question generator.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrPaymentRequired mirrors an upstream 402 from the question generator.
	ErrPaymentRequired = errors.New("payment required, please add credits")
	// ErrNoQuestion is returned when an answer arrives with no question loaded.
	ErrNoQuestion = errors.New("no question loaded")
)
