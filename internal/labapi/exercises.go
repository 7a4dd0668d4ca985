package labapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
)

type ExerciseStatus string

const (
	ExerciseDraft     ExerciseStatus = "DRAFT"
	ExercisePublished ExerciseStatus = "PUBLISHED"
	ExerciseArchived  ExerciseStatus = "ARCHIVED"
)

type ExerciseFile struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type Exercise struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	LabDate     string         `json:"labDate,omitempty"`
	DueDate     string         `json:"dueDate,omitempty"`
	TotalPoints int            `json:"totalPoints"`
	LabCourseID int64          `json:"labCourseId"`
	Status      ExerciseStatus `json:"status"`
	Files       []ExerciseFile `json:"files,omitempty"`
}

type CreateExercise struct {
	Title       string
	Description string
	LabDate     string
	DueDate     string
	TotalPoints int
	Status      ExerciseStatus
}

// UpdateExercise leaves zero-valued fields out of the form.
type UpdateExercise struct {
	ID          int64
	Title       string
	Description string
	LabDate     string
	DueDate     string
	TotalPoints int
	Status      ExerciseStatus
}

// Upload is one attachment sent with a create or update.
type Upload struct {
	Name string
	Body io.Reader
}

// GET api/lab-courses/{courseId}/exercises
func (c *Client) ExercisesByCourse(ctx context.Context, courseID int64) ([]Exercise, error) {
	var out []Exercise
	err := c.getJSON(ctx, fmt.Sprintf("api/lab-courses/%d/exercises", courseID), nil, &out)
	return out, err
}

// GET api/exercises/{id}
func (c *Client) Exercise(ctx context.Context, id int64) (Exercise, error) {
	var out Exercise
	err := c.getJSON(ctx, fmt.Sprintf("api/exercises/%d", id), nil, &out)
	return out, err
}

// POST api/lab-courses/{courseId}/exercises (multipart)
func (c *Client) CreateExercise(ctx context.Context, courseID int64, req CreateExercise, files []Upload) (Exercise, error) {
	fields := [][2]string{{"title", req.Title}}
	fields = appendField(fields, "description", req.Description)
	fields = appendField(fields, "labDate", req.LabDate)
	fields = appendField(fields, "dueDate", req.DueDate)
	fields = append(fields, [2]string{"totalPoints", strconv.Itoa(req.TotalPoints)})
	fields = appendField(fields, "status", string(req.Status))

	body, ct, err := multipartBody(fields, files, nil)
	if err != nil {
		return Exercise{}, err
	}
	var out Exercise
	err = c.do(ctx, http.MethodPost, fmt.Sprintf("api/lab-courses/%d/exercises", courseID), nil, body, ct, &out)
	return out, err
}

// PUT api/exercises/{id} (multipart)
func (c *Client) UpdateExercise(ctx context.Context, req UpdateExercise, files []Upload, removeFiles []string) (Exercise, error) {
	var fields [][2]string
	fields = appendField(fields, "title", req.Title)
	fields = appendField(fields, "description", req.Description)
	fields = appendField(fields, "labDate", req.LabDate)
	fields = appendField(fields, "dueDate", req.DueDate)
	if req.TotalPoints > 0 {
		fields = append(fields, [2]string{"totalPoints", strconv.Itoa(req.TotalPoints)})
	}
	fields = appendField(fields, "status", string(req.Status))

	body, ct, err := multipartBody(fields, files, removeFiles)
	if err != nil {
		return Exercise{}, err
	}
	var out Exercise
	err = c.do(ctx, http.MethodPut, fmt.Sprintf("api/exercises/%d", req.ID), nil, body, ct, &out)
	return out, err
}

// DELETE api/exercises/{id}
func (c *Client) DeleteExercise(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("api/exercises/%d", id), nil, nil, "", nil)
}

// DownloadFile streams an attachment into w.
// GET api/exercises/files/{fileId}/download
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("api/exercises/files/"+fileID+"/download", nil), nil)
	if err != nil {
		return 0, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return 0, decodeError(res)
	}
	return io.Copy(w, res.Body)
}

func appendField(fields [][2]string, k, v string) [][2]string {
	if v == "" {
		return fields
	}
	return append(fields, [2]string{k, v})
}

func multipartBody(fields [][2]string, files []Upload, removeFiles []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, "", fmt.Errorf("attach %s: %w", f.Name, err)
		}
	}
	for _, name := range removeFiles {
		if err := mw.WriteField("removeFiles", name); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
