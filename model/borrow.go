// model/borrow.go
package model

import "time"

type BorrowStatus string

const (
	StatusBorrowed BorrowStatus = "BORROWED"
	StatusReturned BorrowStatus = "RETURNED"
	StatusOverdue  BorrowStatus = "OVERDUE"
	StatusLost     BorrowStatus = "LOST"
)

// Terminal reports whether no further transition is allowed.
func (s BorrowStatus) Terminal() bool {
	return s == StatusReturned || s == StatusLost
}

// BorrowRecord is the ledger entry for a single loan. Rows are never
// deleted; terminal records stay for stats and audit.
type BorrowRecord struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	BookID        int64        `json:"book_id"`
	BorrowDate    time.Time    `json:"borrow_date"`
	DueDate       time.Time    `json:"due_date"`
	ReturnDate    *time.Time   `json:"return_date,omitempty"`
	RenewedCount  int          `json:"renewed_count"`
	MaxRenewCount int          `json:"max_renew_count"`
	Status        BorrowStatus `json:"status"`
}

// BorrowDetail is a record joined with the owner-side names. Username and
// BookTitle come from remote snapshots and may be empty when an owner was
// unreachable at read time.
type BorrowDetail struct {
	BorrowRecord
	Username  string `json:"username,omitempty"`
	BookTitle string `json:"book_title,omitempty"`
}
