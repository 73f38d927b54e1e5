// model/remote.go
package model

// UserQuota is a point-in-time snapshot read from the quota owner. The
// owner's copy is authoritative; we never persist this locally.
type UserQuota struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	BorrowedCount  int    `json:"borrowed_count"`
	MaxBorrowCount int    `json:"max_borrow_count"`
}

// BookStock is a point-in-time snapshot read from the stock owner.
type BookStock struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	AvailableCopies int    `json:"available_copies"`
	TotalCopies     int    `json:"total_copies"`
}
