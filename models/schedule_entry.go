package models

import "time"

// TruckScheduleEntry is one normalized food-truck slot extracted from a
// weekly schedule image. A truck appears at most once per day per week.
type TruckScheduleEntry struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	WeekStart string `gorm:"size:10;not null;uniqueIndex:idx_week_day_truck,priority:1"`
	Day       string `gorm:"size:3;not null;uniqueIndex:idx_week_day_truck,priority:2"`
	Truck     string `gorm:"size:128;not null;uniqueIndex:idx_week_day_truck,priority:3"`
	Start     string `gorm:"size:5;not null"`
	End       string `gorm:"size:5;not null"`
	Cuisine   string `gorm:"size:64"`
	Notes     string `gorm:"size:64"`
	ImageURL  string `gorm:"size:512"`
}
