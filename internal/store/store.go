package store

import (
	"context"
	"errors"
)

// ErrExists is returned by Add when the letter number is already stored.
var ErrExists = errors.New("letter already exists")

// ErrNumberRequired is returned by Add for an empty letter number.
var ErrNumberRequired = errors.New("letter number is required")

// Entry is a letter number and its current status.
type Entry struct {
	LetterNumber string `json:"letter_number"`
	Status       string `json:"status"`
}

// Store describes letter status storage, in case we want a different
// implementation than the pg one.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Statuses returns the entries for numbers that are known, in the order
	// requested. Unknown numbers are omitted; a number requested twice is
	// returned twice.
	Statuses(ctx context.Context, numbers []string) ([]Entry, error)

	// Set changes the status of a known letter. The first return value is
	// false when the letter does not exist.
	Set(ctx context.Context, number string, status string) (bool, error)

	// Add stores a new letter. Returns ErrNumberRequired for an empty number
	// and ErrExists if the number is taken.
	Add(ctx context.Context, number string, status string) error

	// All returns every letter in insertion order.
	All(ctx context.Context) ([]Entry, error)
}
