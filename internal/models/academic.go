package models

// AcademicRecord is the external academic snapshot the eligibility evaluator
// classifies. It arrives as data from the student-records system.
type AcademicRecord struct {
	StudentID        string  `db:"student_id" json:"studentId"`
	GPA              float64 `db:"gpa" json:"gpa"`
	CompletedCredits int     `db:"completed_credits" json:"completedCredits"`
	RequiredCredits  int     `db:"required_credits" json:"requiredCredits"`
	OutstandingHolds int     `db:"outstanding_holds" json:"outstandingHolds"`
}
