package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied password does not
	// match. The message is shown to end users.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAllFieldsRequired      = errors.New("name, email and password are required")
	ErrEmailAlreadyRegistered = errors.New("email already registered")

	ErrUserNotFound = errors.New("user not found")
	ErrBookNotFound = errors.New("book not found")

	// ErrNotPurchased is returned when an authenticated user requests
	// content or writes progress for a book outside their owned set.
	ErrNotPurchased = errors.New("you haven't purchased this book")

	ErrBookFieldsRequired = errors.New("title, author, price and category are required")
	ErrInvalidCategory    = errors.New("unknown category")
	ErrNegativePrice      = errors.New("price must not be negative")
	ErrBookFileRequired   = errors.New("book file is required")

	ErrProgressFieldsRequired = errors.New("bookId, currentPage and totalPages are required")
	ErrInvalidPageNumbers     = errors.New("currentPage and totalPages must be positive")

	// ErrContentUnavailable is returned when both content retrieval paths
	// (object store and local file fallback) fail.
	ErrContentUnavailable = errors.New("book content is currently unavailable")
)
