package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Categories is the fixed set of catalog categories.
var Categories = []string{
	"Fiction",
	"Non-Fiction",
	"Science",
	"Technology",
	"History",
	"Biography",
	"Self-Help",
	"Romance",
	"Mystery",
	"Fantasy",
}

// ValidCategory reports whether c is a known catalog category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	FileKey     string    `json:"-"`
	CoverURL    string    `json:"coverImageUrl,omitempty"`
	Category    string    `json:"category"`
	PageCount   int       `json:"pageCount,omitempty"`
	UploadedBy  string    `json:"uploadedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Progress is the resumable reading position for one (user, book) pair.
type Progress struct {
	UserID      string    `json:"-"`
	BookID      string    `json:"bookId"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	ReadingTime int       `json:"readingTime"`
	LastReadAt  time.Time `json:"lastReadAt"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// ListBooksQuery describes catalog filtering, sorting and pagination.
type ListBooksQuery struct {
	Category  string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Pagination is returned alongside catalog pages.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}
