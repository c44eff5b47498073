package models

import "time"

// WeekImage records a discovered weekly schedule graphic so repeated
// requests do not rescrape the dining page.
type WeekImage struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	URL       string `gorm:"size:512;not null;uniqueIndex"`
	Label     string `gorm:"size:64"`
	WeekStart string `gorm:"size:10;index;not null"`
	WeekEnd   string `gorm:"size:10;not null"`
}
