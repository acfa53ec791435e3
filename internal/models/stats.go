package models

// StatusCount is one aggregate bucket of applications by workflow state.
type StatusCount struct {
	Status GraduationStatus `db:"status" json:"status"`
	Count  int              `db:"count" json:"count"`
}

// DepartmentStats aggregates graduation progress for one department.
type DepartmentStats struct {
	Department string `db:"department" json:"department"`
	Faculty    string `db:"faculty" json:"faculty"`
	Total      int    `db:"total" json:"total"`
	Graduates  int    `db:"graduates" json:"graduates"`
	Pending    int    `db:"pending" json:"pending"`
	Rejected   int    `db:"rejected" json:"rejected"`
}

// FacultyStats aggregates graduation progress for one faculty.
type FacultyStats struct {
	Faculty   string `db:"faculty" json:"faculty"`
	Total     int    `db:"total" json:"total"`
	Graduates int    `db:"graduates" json:"graduates"`
	Pending   int    `db:"pending" json:"pending"`
	Rejected  int    `db:"rejected" json:"rejected"`
}

// MonthlyStats is one month of application and graduation volume.
type MonthlyStats struct {
	Month        string `db:"month" json:"month"`
	Applications int    `db:"applications" json:"applications"`
	Graduates    int    `db:"graduates" json:"graduates"`
}

// GraduationOverview is the composed statistics payload.
type GraduationOverview struct {
	ByStatus     []StatusCount     `json:"byStatus"`
	ByFaculty    []FacultyStats    `json:"byFaculty"`
	ByDepartment []DepartmentStats `json:"byDepartment"`
	Monthly      []MonthlyStats    `json:"monthly"`
}
