package labapi

import "context"

type Student struct {
	Index        string       `json:"index"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	LastName     string       `json:"lastName"`
	ParentName   string       `json:"parentName"`
	StudyProgram StudyProgram `json:"studyProgram"`
	CoursesCount int          `json:"coursesCount"`
}

type Semester struct {
	Code         string `json:"code"`
	Year         string `json:"year"`
	SemesterType string `json:"semesterType"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	IsActive     bool   `json:"isActive"`
}

type Subject struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Semester     string `json:"semester"`
}

type Professor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title"`
}

// GET api/students/filter
func (c *Client) FilterStudents(ctx context.Context, f StudentFilter) (Page[Student], error) {
	var out Page[Student]
	q := pageQuery(f.Search, f.Page, f.PageSize, map[string]string{"studyProgramCode": f.StudyProgramCode})
	err := c.getJSON(ctx, "api/students/filter", q, &out)
	return out, err
}

// GET api/semesters
func (c *Client) Semesters(ctx context.Context) ([]Semester, error) {
	var out []Semester
	err := c.getJSON(ctx, "api/semesters", nil, &out)
	return out, err
}

// GET api/subjects
func (c *Client) Subjects(ctx context.Context) ([]Subject, error) {
	var out []Subject
	err := c.getJSON(ctx, "api/subjects", nil, &out)
	return out, err
}

// GET api/professors
func (c *Client) Professors(ctx context.Context) ([]Professor, error) {
	var out []Professor
	err := c.getJSON(ctx, "api/professors", nil, &out)
	return out, err
}

// GET api/study-programs
func (c *Client) StudyPrograms(ctx context.Context) ([]StudyProgram, error) {
	var out []StudyProgram
	err := c.getJSON(ctx, "api/study-programs", nil, &out)
	return out, err
}
