package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookstore/pkg/domain"
)

const migrateLockID int64 = 52415241

// DefaultPageSize is the catalog page size when the caller does not set one.
const DefaultPageSize = 12

// sortColumns maps exposed sort keys to database columns. Anything outside
// this map falls back to created_at.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"title":     "title",
	"author":    "author",
	"price":     "price",
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. Schema registration is
// explicit: every model is migrated here, before any request handling, under
// an advisory lock so concurrent replicas do not race the migration.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &PurchaseModel{}, &ProgressModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "description", "price", "file_key", "cover_url", "category", "page_count"}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns one catalog page plus the total match count.
func (s *GormStore) ListBooks(q domain.ListBooksQuery) ([]domain.Book, int64, error) {
	page, limit := NormalizePage(q.Page, q.Limit)

	tx := s.db.Model(&BookModel{})
	if q.Category != "" && q.Category != "All" {
		tx = tx.Where("category = ?", q.Category)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		tx = tx.Where(
			"title ILIKE ? OR author ILIKE ? OR description ILIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []BookModel
	if err := tx.Order(orderClause(q.SortBy, q.SortOrder)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, total, nil
}

// AddPurchase appends the book to the user's owned set if absent.
// ON CONFLICT DO NOTHING makes the check-then-append a single atomic insert,
// so concurrent purchases of the same pair produce exactly one row.
func (s *GormStore) AddPurchase(userID, bookID string) (bool, error) {
	model := PurchaseModel{
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasPurchase is the entitlement membership test.
func (s *GormStore) HasPurchase(userID, bookID string) (bool, error) {
	var count int64
	if err := s.db.Model(&PurchaseModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPurchasedBooks returns the user's owned books, oldest purchase first.
func (s *GormStore) ListPurchasedBooks(userID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Model(&BookModel{}).
		Joins("JOIN purchase_models ON purchase_models.book_id = book_models.id").
		Where("purchase_models.user_id = ?", userID).
		Order("purchase_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// UpsertProgress creates or overwrites the progress row for the pair.
func (s *GormStore) UpsertProgress(p domain.Progress) (domain.Progress, error) {
	now := time.Now().UTC()
	model := ProgressModel{
		UserID:      p.UserID,
		BookID:      p.BookID,
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		ReadingTime: p.ReadingTime,
		LastReadAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_page", "total_pages", "reading_time", "last_read_at", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return domain.Progress{}, err
	}
	stored, ok, err := s.GetProgress(p.UserID, p.BookID)
	if err != nil {
		return domain.Progress{}, err
	}
	if !ok {
		return domain.Progress{}, fmt.Errorf("progress row missing after upsert")
	}
	return stored, nil
}

// GetProgress returns the stored progress for the pair, if any.
func (s *GormStore) GetProgress(userID, bookID string) (domain.Progress, bool, error) {
	var model ProgressModel
	if err := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Progress{}, false, nil
		}
		return domain.Progress{}, false, err
	}
	return progressFromModel(model), true, nil
}

// NormalizePage clamps page/limit to sane catalog values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, limit
}

// TotalPages derives the page count for a total at the given limit.
func TotalPages(total int64, limit int) int {
	if limit < 1 {
		limit = DefaultPageSize
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func orderClause(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Price:       b.Price,
		FileKey:     b.FileKey,
		CoverURL:    b.CoverURL,
		Category:    b.Category,
		PageCount:   b.PageCount,
		UploadedBy:  b.UploadedBy,
		CreatedAt:   b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Description: m.Description,
		Price:       m.Price,
		FileKey:     m.FileKey,
		CoverURL:    m.CoverURL,
		Category:    m.Category,
		PageCount:   m.PageCount,
		UploadedBy:  m.UploadedBy,
		CreatedAt:   m.CreatedAt,
	}
}

func progressFromModel(m ProgressModel) domain.Progress {
	return domain.Progress{
		UserID:      m.UserID,
		BookID:      m.BookID,
		CurrentPage: m.CurrentPage,
		TotalPages:  m.TotalPages,
		ReadingTime: m.ReadingTime,
		LastReadAt:  m.LastReadAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
