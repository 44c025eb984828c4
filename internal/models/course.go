package models

// Course is a catalog entry students enroll into. ClassRate is what a teacher
// earns per payable class, in minor currency units.
type Course struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	Level     string `db:"level" json:"level"`
	ClassRate int64  `db:"class_rate" json:"class_rate"`
	Currency  string `db:"currency" json:"currency"`
	Active    bool   `db:"active" json:"active"`
}
