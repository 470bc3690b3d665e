package domain

import "time"

// Category is reference data for ticket classification. Subcategories point
// at their parent via ParentID.
type Category struct {
	ID        string
	Name      string
	ParentID  *string
	IsActive  bool
	CreatedAt time.Time
}
