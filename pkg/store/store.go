package store

import (
	"bookstore/pkg/domain"
)

// Store defines persistence operations for users, books, purchases,
// and reading progress.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks(q domain.ListBooksQuery) ([]domain.Book, int64, error)

	// purchases
	// AddPurchase inserts the (user, book) entitlement if absent and reports
	// whether a new row was created. The insert is atomic: concurrent calls
	// for the same pair leave exactly one row.
	AddPurchase(userID, bookID string) (bool, error)
	HasPurchase(userID, bookID string) (bool, error)
	ListPurchasedBooks(userID string) ([]domain.Book, error)

	// progress
	// UpsertProgress creates or overwrites the single progress row for the
	// (user, book) pair and returns the stored snapshot.
	UpsertProgress(p domain.Progress) (domain.Progress, error)
	GetProgress(userID, bookID string) (domain.Progress, bool, error)
}
