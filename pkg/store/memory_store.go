package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"bookstore/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the Postgres store's
// behavior, including the one-row-per-pair purchase and progress invariants,
// and is used by tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	books     map[string]domain.Book
	bookOrder []string
	purchases map[string]map[string]struct{} // user ID -> set of book IDs
	purchased map[string][]string            // user ID -> book IDs in purchase order
	progress  map[string]domain.Progress     // user|book -> progress
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		books:     make(map[string]domain.Book),
		purchases: make(map[string]map[string]struct{}),
		purchased: make(map[string][]string),
		progress:  make(map[string]domain.Progress),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

func (m *MemoryStore) ListBooks(q domain.ListBooksQuery) ([]domain.Book, int64, error) {
	m.mu.RLock()
	matched := make([]domain.Book, 0, len(m.bookOrder))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, id := range m.bookOrder {
		b, ok := m.books[id]
		if !ok {
			continue
		}
		if q.Category != "" && q.Category != "All" && b.Category != q.Category {
			continue
		}
		if search != "" && !matchesSearch(b, search) {
			continue
		}
		matched = append(matched, b)
	}
	m.mu.RUnlock()

	sortBooks(matched, q.SortBy, q.SortOrder)

	total := int64(len(matched))
	page, limit := NormalizePage(q.Page, q.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return []domain.Book{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) AddPurchase(userID, bookID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.purchases[userID]
	if !ok {
		set = make(map[string]struct{})
		m.purchases[userID] = set
	}
	if _, owned := set[bookID]; owned {
		return false, nil
	}
	set[bookID] = struct{}{}
	m.purchased[userID] = append(m.purchased[userID], bookID)
	return true, nil
}

func (m *MemoryStore) HasPurchase(userID, bookID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.purchases[userID][bookID]
	return ok, nil
}

func (m *MemoryStore) ListPurchasedBooks(userID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.purchased[userID]
	books := make([]domain.Book, 0, len(ids))
	for _, id := range ids {
		if b, ok := m.books[id]; ok {
			books = append(books, b)
		}
	}
	return books, nil
}

func (m *MemoryStore) UpsertProgress(p domain.Progress) (domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	key := p.UserID + "|" + p.BookID
	stored, exists := m.progress[key]
	if !exists {
		stored = domain.Progress{
			UserID:    p.UserID,
			BookID:    p.BookID,
			CreatedAt: now,
		}
	}
	stored.CurrentPage = p.CurrentPage
	stored.TotalPages = p.TotalPages
	stored.ReadingTime = p.ReadingTime
	stored.LastReadAt = now
	stored.UpdatedAt = now
	m.progress[key] = stored
	return stored, nil
}

func (m *MemoryStore) GetProgress(userID, bookID string) (domain.Progress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[userID+"|"+bookID]
	return p, ok, nil
}

// ProgressCount reports the number of stored progress rows. Test helper.
func (m *MemoryStore) ProgressCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.progress)
}

func matchesSearch(b domain.Book, search string) bool {
	return strings.Contains(strings.ToLower(b.Title), search) ||
		strings.Contains(strings.ToLower(b.Author), search) ||
		strings.Contains(strings.ToLower(b.Description), search)
}

func sortBooks(books []domain.Book, sortBy, sortOrder string) {
	asc := strings.EqualFold(sortOrder, "asc")
	less := func(a, b domain.Book) bool {
		switch sortBy {
		case "title":
			return a.Title < b.Title
		case "author":
			return a.Author < b.Author
		case "price":
			return a.Price < b.Price
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(books, func(i, j int) bool {
		if asc {
			return less(books[i], books[j])
		}
		return less(books[j], books[i])
	})
}
