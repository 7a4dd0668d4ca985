package labapi

import (
	"context"
	"fmt"
	"net/http"
)

// MaxPageSize is the largest page the backend serves.
const MaxPageSize = 100

type SemesterRef struct {
	Code string `json:"code"`
	Year string `json:"year"`
	Type string `json:"type"`
}

type SubjectRef struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Code         string `json:"code"`
}

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LabCourse struct {
	ID                    int64       `json:"id"`
	Semester              SemesterRef `json:"semester"`
	Subject               SubjectRef  `json:"subject"`
	Description           string      `json:"description"`
	Professors            []Person    `json:"professors"`
	Assistants            []Person    `json:"assistants"`
	Status                string      `json:"status"`
	EnrolledStudentsCount int         `json:"enrolledStudentsCount,omitempty"`
}

type LabCourseInput struct {
	SemesterCode        string   `json:"semesterCode"`
	SubjectAbbreviation string   `json:"subjectAbbreviation"`
	Description         string   `json:"description,omitempty"`
	ProfessorIDs        []string `json:"professorIds"`
	AssistantIDs        []string `json:"assistantIds,omitempty"`
	Status              string   `json:"status,omitempty"`
}

type CourseFilter struct {
	Search       string
	SemesterCode string
	Page         int
	PageSize     int
}

type StudyProgram struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Enrollee is a student as listed on a lab course roster.
type Enrollee struct {
	Index           string       `json:"index"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	LastName        string       `json:"lastName"`
	StudyProgram    StudyProgram `json:"studyProgram"`
	SignatureStatus string       `json:"signatureStatus"`
	LabsCompleted   int          `json:"labsCompleted"`
}

type StudentFilter struct {
	Search           string
	StudyProgramCode string
	Page             int
	PageSize         int
}

// GET api/lab-courses/filter
func (c *Client) FilterCourses(ctx context.Context, f CourseFilter) (Page[LabCourse], error) {
	var out Page[LabCourse]
	q := pageQuery(f.Search, f.Page, f.PageSize, map[string]string{"semesterCode": f.SemesterCode})
	err := c.getJSON(ctx, "api/lab-courses/filter", q, &out)
	return out, err
}

// GET api/lab-courses/{id}
func (c *Client) Course(ctx context.Context, id int64) (LabCourse, error) {
	var out LabCourse
	err := c.getJSON(ctx, fmt.Sprintf("api/lab-courses/%d", id), nil, &out)
	return out, err
}

// POST api/lab-courses
func (c *Client) CreateCourse(ctx context.Context, in LabCourseInput) (LabCourse, error) {
	var out LabCourse
	err := c.sendJSON(ctx, http.MethodPost, "api/lab-courses", in, &out)
	return out, err
}

// PUT api/lab-courses/{id}
func (c *Client) UpdateCourse(ctx context.Context, id int64, in LabCourseInput) (LabCourse, error) {
	var out LabCourse
	body := struct {
		ID int64 `json:"id"`
		LabCourseInput
	}{id, in}
	err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("api/lab-courses/%d", id), body, &out)
	return out, err
}

// DELETE api/lab-courses/{id}
func (c *Client) DeleteCourse(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("api/lab-courses/%d", id), nil, nil, "", nil)
}

// GET api/lab-courses/{courseId}/students/filter
func (c *Client) FilterEnrollees(ctx context.Context, courseID int64, f StudentFilter) (Page[Enrollee], error) {
	var out Page[Enrollee]
	q := pageQuery(f.Search, f.Page, f.PageSize, map[string]string{"studyProgramCode": f.StudyProgramCode})
	err := c.getJSON(ctx, fmt.Sprintf("api/lab-courses/%d/students/filter", courseID), q, &out)
	return out, err
}

// Roster walks every page of a course's students. Pages are 1-based and
// fetched at the maximum size until Count items are collected or a page
// comes back empty.
func (c *Client) Roster(ctx context.Context, courseID int64) ([]Enrollee, error) {
	var all []Enrollee
	for page := 1; ; page++ {
		p, err := c.FilterEnrollees(ctx, courseID, StudentFilter{Page: page, PageSize: MaxPageSize})
		if err != nil {
			return nil, fmt.Errorf("roster page %d: %w", page, err)
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || len(all) >= p.Count {
			return all, nil
		}
	}
}

// POST api/lab-courses/{courseId}/students
func (c *Client) AddStudents(ctx context.Context, courseID int64, studentIDs []string) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("api/lab-courses/%d/students", courseID),
		map[string]any{"studentIds": studentIDs}, nil)
}

// DELETE api/lab-courses/{courseId}/students/{index}
func (c *Client) RemoveStudent(ctx context.Context, courseID int64, index string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("api/lab-courses/%d/students/%s", courseID, index), nil, nil, "", nil)
}

// POST api/lab-courses/{courseId}/update-signature
func (c *Client) UpdateSignatures(ctx context.Context, courseID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("api/lab-courses/%d/update-signature", courseID), nil, nil, "", nil)
}

// PUT api/lab-courses/{courseId}/update-signature-requirements
func (c *Client) UpdateSignatureRequirement(ctx context.Context, courseID int64, requiredExercises int) error {
	if requiredExercises < 0 {
		return fmt.Errorf("labapi: required exercises must be at least 0, got %d", requiredExercises)
	}
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("api/lab-courses/%d/update-signature-requirements", courseID),
		map[string]int{"requiredExercises": requiredExercises}, nil)
}
