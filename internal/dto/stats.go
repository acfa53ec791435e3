package dto

// StatsQuery filters the graduation statistics overview.
type StatsQuery struct {
	Faculty string `form:"faculty"`
	Year    int    `form:"year"`
}

// ExportQuery selects an export format for statistics downloads.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
