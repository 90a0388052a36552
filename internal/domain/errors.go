package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTarget    = errors.New("invalid target")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrTransient        = errors.New("transient fetch error")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

// FetchFailure is a page that could not be fetched, after retries.
type FetchFailure struct {
	URL    string
	Page   int
	Status int
	Err    error
}

func (e *FetchFailure) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch page %d (%s): status %d: %v", e.Page, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// StoreError is a persistence failure; durability can no longer be promised.
type StoreError struct {
	Key string
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
