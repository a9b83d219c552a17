package entities

import "time"

type BookStatus string

const (
	BookAvailable   BookStatus = "Available"
	BookUnavailable BookStatus = "Unavailable"
)

// StatusFor derives a book's status from its available quantity.
func StatusFor(available int) BookStatus {
	if available > 0 {
		return BookAvailable
	}
	return BookUnavailable
}

type Book struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Barcode       string     `gorm:"uniqueIndex;size:64;not null" json:"barcode"`
	Name          string     `gorm:"index;size:512;not null" json:"name"`
	Author        string     `gorm:"index;size:256" json:"author,omitempty"`
	Publisher     string     `gorm:"size:256" json:"publisher,omitempty"`
	ISBN          string     `gorm:"index;size:20" json:"isbn,omitempty"`
	Year          int        `json:"year,omitempty"`
	Quantity      int        `gorm:"not null;default:0" json:"quantity"`
	BorrowedCount int        `gorm:"not null;default:0" json:"borrowed_count"`
	AvailableQty  int        `gorm:"not null;default:0" json:"available_qty"`
	Status        BookStatus `gorm:"index;size:20" json:"status"`
	Cover         string     `gorm:"size:1024" json:"cover,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// Recompute re-derives available quantity and status from quantity and borrowed count.
func (b *Book) Recompute() {
	b.AvailableQty = b.Quantity - b.BorrowedCount
	b.Status = StatusFor(b.AvailableQty)
}
