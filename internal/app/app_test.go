package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"bookstore/pkg/domain"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
	"bookstore/pkg/token"
)

// failingObjectStore always fails retrieval, forcing the fallback path.
type failingObjectStore struct{}

func (failingObjectStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("object store down")
}
func (failingObjectStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("object store down")
}
func (failingObjectStore) Delete(context.Context, string) error {
	return errors.New("object store down")
}

type fixture struct {
	app   *App
	store *store.MemoryStore
	files *storage.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	tokens, err := token.NewManager("test-secret", token.Options{})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	a, err := New(Config{Store: mem, Tokens: tokens, Files: files})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &fixture{app: a, store: mem, files: files}
}

func (f *fixture) seedUser(t *testing.T) domain.User {
	t.Helper()
	user, err := f.app.Register("Ana", "ana@x.com", "pw12345")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func (f *fixture) seedBook(t *testing.T, id string) domain.Book {
	t.Helper()
	book := domain.Book{
		ID:       id,
		Title:    "Dune",
		Author:   "Herbert",
		Price:    9.99,
		FileKey:  id + ".pdf",
		Category: "Fiction",
	}
	if err := f.store.SaveBook(book); err != nil {
		t.Fatalf("save book: %v", err)
	}
	if err := f.files.Save(book.FileKey, strings.NewReader("%PDF-1.4 content of "+id)); err != nil {
		t.Fatalf("save file: %v", err)
	}
	return book
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t)
	if _, err := f.app.Register("Ana Again", "ana@x.com", "pw12345"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ name, email, password string }{
		{"", "a@x.com", "pw12345"},
		{"Ana", "", "pw12345"},
		{"Ana", "a@x.com", ""},
	} {
		if _, err := f.app.Register(tc.name, tc.email, tc.password); !errors.Is(err, ErrAllFieldsRequired) {
			t.Fatalf("expected missing-field error for %+v, got %v", tc, err)
		}
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)

	got, tok, err := f.app.Login("ana@x.com", "pw12345")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID || got.Role != domain.RoleUser {
		t.Fatalf("unexpected login user: %+v", got)
	}
	fromToken, ok := f.app.UserFromToken(tok)
	if !ok || fromToken.ID != user.ID {
		t.Fatalf("expected token to resolve the user, ok=%v", ok)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t)
	if _, _, err := f.app.Login("nobody@x.com", "pw12345"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected unknown user error, got %v", err)
	}
	if _, _, err := f.app.Login("ana@x.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected bad password error, got %v", err)
	}
}

func TestUserFromTokenFailsClosed(t *testing.T) {
	f := newFixture(t)
	if _, ok := f.app.UserFromToken("garbage"); ok {
		t.Fatalf("expected malformed token to fail")
	}
}

func TestPurchaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")

	got, already, err := f.app.Purchase(user.ID, book.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if already || got.ID != book.ID {
		t.Fatalf("unexpected first purchase: already=%v book=%+v", already, got)
	}

	got, already, err = f.app.Purchase(user.ID, book.ID)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if !already || got.ID != book.ID {
		t.Fatalf("expected already-owned no-op, already=%v", already)
	}

	owned, err := f.store.ListPurchasedBooks(user.ID)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("expected owned set of exactly 1, got %d", len(owned))
	}
}

func TestPurchaseUnknownBook(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	if _, _, err := f.app.Purchase(user.ID, "missing"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected book-not-found, got %v", err)
	}
}

func TestHasEntitlementTracksOwnedSet(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")

	owned, err := f.app.HasEntitlement(user.ID, book.ID)
	if err != nil || owned {
		t.Fatalf("expected no entitlement before purchase, owned=%v err=%v", owned, err)
	}
	if _, _, err := f.app.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	owned, err = f.app.HasEntitlement(user.ID, book.ID)
	if err != nil || !owned {
		t.Fatalf("expected entitlement after purchase, owned=%v err=%v", owned, err)
	}
}

func TestFetchContentGatedByEntitlement(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")

	if _, _, err := f.app.FetchContent(context.Background(), user.ID, book.ID); !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("expected forbidden before purchase, got %v", err)
	}

	if _, _, err := f.app.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	content, got, err := f.app.FetchContent(context.Background(), user.ID, book.ID)
	if err != nil {
		t.Fatalf("fetch content: %v", err)
	}
	defer content.Close()
	data, err := io.ReadAll(content)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if !strings.Contains(string(data), "content of b1") || got.ID != book.ID {
		t.Fatalf("unexpected content %q for book %+v", data, got)
	}
}

func TestFetchContentFallsBackToFileStore(t *testing.T) {
	mem := store.NewMemoryStore()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	tokens, err := token.NewManager("test-secret", token.Options{})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	a, err := New(Config{Store: mem, Tokens: tokens, Objects: failingObjectStore{}, Files: files})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	f := &fixture{app: a, store: mem, files: files}
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")
	if _, _, err := a.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	content, _, err := a.FetchContent(context.Background(), user.ID, book.ID)
	if err != nil {
		t.Fatalf("expected fallback to local file, got %v", err)
	}
	content.Close()
}

func TestFetchContentBothPathsFail(t *testing.T) {
	mem := store.NewMemoryStore()
	tokens, err := token.NewManager("test-secret", token.Options{})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	a, err := New(Config{Store: mem, Tokens: tokens, Objects: failingObjectStore{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	user, err := a.Register("Ana", "ana@x.com", "pw12345")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	book := domain.Book{ID: "b1", Title: "Dune", Author: "H", FileKey: "b1.pdf", Category: "Fiction"}
	if err := mem.SaveBook(book); err != nil {
		t.Fatalf("save book: %v", err)
	}
	if _, _, err := a.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, _, err := a.FetchContent(context.Background(), user.ID, book.ID); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected delivery error when all paths fail, got %v", err)
	}
}

func TestSaveProgressRequiresEntitlement(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")

	if _, err := f.app.SaveProgress(user.ID, book.ID, 3, 100, 0); !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("expected forbidden before purchase, got %v", err)
	}
	if f.store.ProgressCount() != 0 {
		t.Fatalf("no record may be written without entitlement")
	}
}

func TestSaveProgressUpsertsSingleRecord(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")
	if _, _, err := f.app.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	for page := 1; page <= 4; page++ {
		saved, err := f.app.SaveProgress(user.ID, book.ID, page, 100, page*2)
		if err != nil {
			t.Fatalf("save progress page %d: %v", page, err)
		}
		if saved.CurrentPage != page || saved.TotalPages != 100 {
			t.Fatalf("unexpected snapshot: %+v", saved)
		}
	}
	if count := f.store.ProgressCount(); count != 1 {
		t.Fatalf("expected exactly one progress record, got %d", count)
	}
	p, ok, err := f.app.GetProgress(user.ID, book.ID)
	if err != nil || !ok {
		t.Fatalf("get progress: ok=%v err=%v", ok, err)
	}
	if p.CurrentPage != 4 || p.ReadingTime != 8 {
		t.Fatalf("expected last write to win, got %+v", p)
	}
}

func TestSaveProgressRejectsZeroPages(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")
	if _, _, err := f.app.Purchase(user.ID, book.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := f.app.SaveProgress(user.ID, book.ID, 0, 100, 0); !errors.Is(err, ErrProgressFieldsRequired) {
		t.Fatalf("expected invalid input for currentPage=0, got %v", err)
	}
	if _, err := f.app.SaveProgress(user.ID, book.ID, 5, 0, 0); !errors.Is(err, ErrProgressFieldsRequired) {
		t.Fatalf("expected invalid input for totalPages=0, got %v", err)
	}
	if f.store.ProgressCount() != 0 {
		t.Fatalf("invalid input must not write a record")
	}
}

func TestGetProgressNoneIsNotError(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	book := f.seedBook(t, "b1")

	_, ok, err := f.app.GetProgress(user.ID, book.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no progress yet")
	}
}

func TestListBooksPaginationMeta(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.seedBook(t, fmt.Sprintf("b%02d", i))
	}

	books, meta, err := f.app.ListBooks(domain.ListBooksQuery{Page: 2, Limit: 12})
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if len(books) != 12 {
		t.Fatalf("expected full page, got %d", len(books))
	}
	if meta.TotalCount != 25 || meta.TotalPages != 3 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if !meta.HasNext || !meta.HasPrev {
		t.Fatalf("page 2 of 3 must have next and prev: %+v", meta)
	}

	_, meta, err = f.app.ListBooks(domain.ListBooksQuery{Page: 3, Limit: 12})
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if meta.HasNext || !meta.HasPrev {
		t.Fatalf("last page meta wrong: %+v", meta)
	}

	_, meta, err = f.app.ListBooks(domain.ListBooksQuery{Page: 1, Limit: 12})
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if !meta.HasNext || meta.HasPrev {
		t.Fatalf("first page meta wrong: %+v", meta)
	}
}

func TestCreateBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.app.CreateBook(ctx, "admin-1", CreateBookInput{Author: "A", Category: "Fiction", Price: 1}); !errors.Is(err, ErrBookFieldsRequired) {
		t.Fatalf("expected missing title error, got %v", err)
	}
	if _, err := f.app.CreateBook(ctx, "admin-1", CreateBookInput{Title: "T", Author: "A", Category: "Cooking", Price: 1, FileData: []byte("x")}); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected invalid category error, got %v", err)
	}
	if _, err := f.app.CreateBook(ctx, "admin-1", CreateBookInput{Title: "T", Author: "A", Category: "Fiction", Price: -1, FileData: []byte("x")}); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected negative price error, got %v", err)
	}
	if _, err := f.app.CreateBook(ctx, "admin-1", CreateBookInput{Title: "T", Author: "A", Category: "Fiction", Price: 1}); !errors.Is(err, ErrBookFileRequired) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestCreateBookStoresFileAndRecord(t *testing.T) {
	f := newFixture(t)
	book, err := f.app.CreateBook(context.Background(), "admin-1", CreateBookInput{
		Title:    "Dune",
		Author:   "Herbert",
		Category: "Fiction",
		Price:    9.99,
		FileName: "dune.pdf",
		FileData: []byte("not really a pdf, probe fails, upload still succeeds"),
	})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.FileKey == "" || book.UploadedBy != "admin-1" {
		t.Fatalf("unexpected book: %+v", book)
	}
	if book.PageCount != 0 {
		t.Fatalf("probe of non-pdf must leave page count unknown, got %d", book.PageCount)
	}
	stored, err := f.app.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if stored.Title != "Dune" {
		t.Fatalf("unexpected stored book: %+v", stored)
	}
	content, err := f.files.Open(book.FileKey)
	if err != nil {
		t.Fatalf("expected stored file to open: %v", err)
	}
	content.Close()
}
