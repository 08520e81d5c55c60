// Package database defines the errors shared by every storage backend of
// the URL shortener, regardless of whether records live in a spreadsheet
// or in a relational table.
package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new shortened URL with a short code that is already taken by a
	// live record.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an operation targets a short code
	// that has no live record, including codes whose row has been
	// cleared by a delete.
	ErrURLNotFound = errors.New("url not found")
)
