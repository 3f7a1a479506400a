package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type BookModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null;index"`
	Author      string `gorm:"not null;index"`
	Description string
	Price       float64 `gorm:"not null;index"`
	FileKey     string  `gorm:"not null"`
	CoverURL    string
	Category    string `gorm:"not null;index"`
	PageCount   int
	UploadedBy  string
	CreatedAt   time.Time `gorm:"not null;index"`
}

// PurchaseModel is the owned-book set as a join table. The composite unique
// index is the atomic "add to set if absent" primitive.
type PurchaseModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"not null;uniqueIndex:idx_purchases_user_book;index"`
	BookID    string `gorm:"not null;uniqueIndex:idx_purchases_user_book"`
	CreatedAt time.Time `gorm:"not null"`
}

// ProgressModel holds at most one row per (user, book) pair.
type ProgressModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"not null;uniqueIndex:idx_progress_user_book;index"`
	BookID      string `gorm:"not null;uniqueIndex:idx_progress_user_book"`
	CurrentPage int    `gorm:"not null"`
	TotalPages  int    `gorm:"not null"`
	ReadingTime int    `gorm:"not null"`
	LastReadAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
