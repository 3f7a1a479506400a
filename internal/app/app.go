package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"bookstore/internal/pdfmeta"
	"bookstore/internal/util"
	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
	"bookstore/pkg/token"
)

// Config wires storage and token dependencies into the core application.
// The store handle is constructed once at process start and injected here;
// no global connection state exists anywhere in the service.
type Config struct {
	Store   store.Store
	Tokens  *token.Manager
	Objects storage.ObjectStore
	Files   *storage.FileStore
}

// App implements the bookstore's core services: accounts, catalog,
// entitlements, gated content delivery, and reading progress.
type App struct {
	store   store.Store
	tokens  *token.Manager
	objects storage.ObjectStore
	files   *storage.FileStore
}

// New validates dependencies and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token manager is required")
	}
	if cfg.Objects == nil && cfg.Files == nil {
		return nil, errors.New("at least one content store is required")
	}
	return &App{
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		objects: cfg.Objects,
		files:   cfg.Files,
	}, nil
}

// Register creates a user with role "user". Admin accounts are provisioned
// out of band.
func (a *App) Register(name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, ErrAllFieldsRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyRegistered
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrUserNotFound
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	tok, err := a.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, tok, nil
}

// UserFromToken verifies a session token and loads the bound user.
// Any verification or lookup failure yields (zero, false); callers never see
// a partial identity.
func (a *App) UserFromToken(raw string) (domain.User, bool) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// Profile returns the user together with their purchased books.
func (a *App) Profile(userID string) (domain.User, []domain.Book, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, nil, ErrUserNotFound
	}
	books, err := a.store.ListPurchasedBooks(userID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("list purchases: %w", err)
	}
	return user, books, nil
}

// ListBooks returns a catalog page and its pagination metadata.
func (a *App) ListBooks(q domain.ListBooksQuery) ([]domain.Book, domain.Pagination, error) {
	page, limit := store.NormalizePage(q.Page, q.Limit)
	q.Page, q.Limit = page, limit
	books, total, err := a.store.ListBooks(q)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list books: %w", err)
	}
	return books, domain.Pagination{
		CurrentPage: page,
		TotalPages:  store.TotalPages(total, limit),
		TotalCount:  total,
		HasNext:     int64(page)*int64(limit) < total,
		HasPrev:     page > 1,
	}, nil
}

// GetBook returns one catalog record.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// CreateBookInput is the admin upload payload.
type CreateBookInput struct {
	Title       string
	Author      string
	Description string
	Price       float64
	Category    string
	CoverURL    string
	FileName    string
	FileData    []byte
}

// CreateBook stores the uploaded PDF and adds the book to the catalog.
// The page count is probed from the file so the reader can show totals
// before the first open; probe failures leave the count unknown.
func (a *App) CreateBook(ctx context.Context, adminID string, in CreateBookInput) (domain.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" || in.Author == "" || in.Category == "" {
		return domain.Book{}, ErrBookFieldsRequired
	}
	if in.Price < 0 {
		return domain.Book{}, ErrNegativePrice
	}
	if !domain.ValidCategory(in.Category) {
		return domain.Book{}, ErrInvalidCategory
	}
	if len(in.FileData) == 0 {
		return domain.Book{}, ErrBookFileRequired
	}

	id := util.NewID()
	key := "books/" + id + ".pdf"

	pageCount := 0
	if count, err := pdfmeta.PageCount(bytes.NewReader(in.FileData), int64(len(in.FileData))); err != nil {
		slog.Warn("page count probe failed", "book_id", id, "err", err)
	} else {
		pageCount = count
	}

	if a.objects != nil {
		if err := a.objects.Put(ctx, key, bytes.NewReader(in.FileData), int64(len(in.FileData)), "application/pdf"); err != nil {
			return domain.Book{}, fmt.Errorf("store book file: %w", err)
		}
	} else {
		if err := a.files.Save(key, bytes.NewReader(in.FileData)); err != nil {
			return domain.Book{}, fmt.Errorf("store book file: %w", err)
		}
	}

	book := domain.Book{
		ID:          id,
		Title:       in.Title,
		Author:      in.Author,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		FileKey:     key,
		CoverURL:    strings.TrimSpace(in.CoverURL),
		Category:    in.Category,
		PageCount:   pageCount,
		UploadedBy:  adminID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// Purchase records the entitlement. Purchasing an already-owned book is a
// success no-op that returns the existing record; the owned set never gains
// a second reference. The underlying insert is atomic, so concurrent
// purchases of the same pair collapse to one row.
func (a *App) Purchase(userID, bookID string) (domain.Book, bool, error) {
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return domain.Book{}, false, fmt.Errorf("load user: %w", err)
	} else if !ok {
		return domain.Book{}, false, ErrUserNotFound
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, false, ErrBookNotFound
	}
	added, err := a.store.AddPurchase(userID, book.ID)
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("add purchase: %w", err)
	}
	return book, !added, nil
}

// HasEntitlement is the membership test against the user's owned set.
// Both sides are canonical string ids, so equality is plain value equality.
func (a *App) HasEntitlement(userID, bookID string) (bool, error) {
	return a.store.HasPurchase(userID, bookID)
}

// FetchContent resolves and opens the gated PDF for an entitled user.
// Retrieval tries the object store first and falls back to the local file
// store; ErrContentUnavailable is returned only when every configured path
// fails.
func (a *App) FetchContent(ctx context.Context, userID, bookID string) (io.ReadCloser, domain.Book, error) {
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return nil, domain.Book{}, fmt.Errorf("load user: %w", err)
	} else if !ok {
		return nil, domain.Book{}, ErrUserNotFound
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return nil, domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return nil, domain.Book{}, ErrBookNotFound
	}
	owned, err := a.store.HasPurchase(userID, book.ID)
	if err != nil {
		return nil, domain.Book{}, fmt.Errorf("check entitlement: %w", err)
	}
	if !owned {
		return nil, domain.Book{}, ErrNotPurchased
	}

	content, err := a.openContent(ctx, book.FileKey)
	if err != nil {
		slog.Error("content retrieval failed", "book_id", book.ID, "err", err)
		return nil, domain.Book{}, ErrContentUnavailable
	}
	return content, book, nil
}

func (a *App) openContent(ctx context.Context, fileKey string) (io.ReadCloser, error) {
	var primaryErr error
	if a.objects != nil {
		content, err := a.objects.Get(ctx, fileKey)
		if err == nil {
			return content, nil
		}
		primaryErr = err
	}
	if a.files != nil {
		content, err := a.files.Open(fileKey)
		if err == nil {
			return content, nil
		}
		if primaryErr != nil {
			return nil, fmt.Errorf("object store: %v; file store: %w", primaryErr, err)
		}
		return nil, err
	}
	return nil, primaryErr
}

// SaveProgress validates and upserts the reading position for the pair.
// Page fields are checked before any lookup so invalid input never writes.
func (a *App) SaveProgress(userID, bookID string, currentPage, totalPages, readingTime int) (domain.Progress, error) {
	if strings.TrimSpace(bookID) == "" || currentPage == 0 || totalPages == 0 {
		return domain.Progress{}, ErrProgressFieldsRequired
	}
	if currentPage < 0 || totalPages < 0 || readingTime < 0 {
		return domain.Progress{}, ErrInvalidPageNumbers
	}
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return domain.Progress{}, fmt.Errorf("load user: %w", err)
	} else if !ok {
		return domain.Progress{}, ErrUserNotFound
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Progress{}, ErrBookNotFound
	}
	owned, err := a.store.HasPurchase(userID, book.ID)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("check entitlement: %w", err)
	}
	if !owned {
		return domain.Progress{}, ErrNotPurchased
	}
	saved, err := a.store.UpsertProgress(domain.Progress{
		UserID:      userID,
		BookID:      book.ID,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		ReadingTime: readingTime,
	})
	if err != nil {
		return domain.Progress{}, fmt.Errorf("upsert progress: %w", err)
	}
	return saved, nil
}

// GetProgress returns the stored position, or ok=false when the user has
// not read the book yet. Absence is not an error.
func (a *App) GetProgress(userID, bookID string) (domain.Progress, bool, error) {
	progress, ok, err := a.store.GetProgress(userID, bookID)
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("load progress: %w", err)
	}
	return progress, ok, nil
}
