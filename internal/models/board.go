package models

// BoardColumn is one grade column of the browsing board.
type BoardColumn struct {
	GradeID     string     `json:"grade_id"`
	GradeLevel  string     `json:"grade_level"`
	GradeNumber int        `json:"grade_number"`
	Count       int        `json:"count"`
	Resources   []Resource `json:"resources"`
}

// Board is the grade-grouped view of the catalog.
type Board struct {
	Columns []BoardColumn `json:"columns"`
	Shown   int           `json:"shown"`
	Total   int           `json:"total"`
}

// BoardFilter is the client-side style query over the board.
type BoardFilter struct {
	Search     string
	SubjectIDs []string
	TypeIDs    []string
}
