// model/stats.go
package model

type BorrowStats struct {
	TotalBorrowed int64 `json:"total_borrowed"`
	TotalOverdue  int64 `json:"total_overdue"`
	TodayBorrowed int64 `json:"today_borrowed"`
	TodayReturned int64 `json:"today_returned"`
}
