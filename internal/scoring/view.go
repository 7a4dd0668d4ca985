package scoring

import "strings"

// Row is a StudentScore joined with its roster entry and current validation.
type Row struct {
	StudentScore
	Student    StudentRef `json:"student"`
	Validation Validation `json:"validation"`
}

// Rows returns a snapshot of every row in roster order.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.roster))
	for _, st := range s.roster {
		out = append(out, s.rowLocked(st))
	}
	return out
}

// Row returns a snapshot of one row.
func (s *Session) Row(studentID string) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.roster {
		if st.Index == studentID {
			return s.rowLocked(st), true
		}
	}
	return Row{}, false
}

func (s *Session) rowLocked(st StudentRef) Row {
	row := *s.scores[st.Index]
	if row.LastSaved != nil {
		t := *row.LastSaved
		row.LastSaved = &t
	}
	return Row{StudentScore: row, Student: st, Validation: Validate(row.CorePoints, s.bound)}
}

// Search returns the rows whose index, first name, last name or full name
// contains q, case-insensitively. An empty query matches every row.
func (s *Session) Search(q string) []Row {
	q = strings.ToLower(strings.TrimSpace(q))
	rows := s.Rows()
	if q == "" {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if matches(r.Student, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(st StudentRef, q string) bool {
	for _, f := range []string{st.Index, st.Name, st.LastName, st.Name + " " + st.LastName} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Validate checks value against this session's exercise bound.
func (s *Session) Validate(value string) Validation {
	return Validate(value, s.Bound())
}

func (s *Session) PendingCount() int {
	return s.count(func(r *StudentScore) bool { return r.SaveStatus == StatusPending })
}

func (s *Session) ErrorCount() int {
	return s.count(func(r *StudentScore) bool { return r.SaveStatus == StatusError })
}

func (s *Session) GradedCount() int {
	return s.count(func(r *StudentScore) bool { return r.SaveStatus == StatusGraded })
}

// CompletedCount counts rows holding a non-empty point value.
func (s *Session) CompletedCount() int {
	return s.count(func(r *StudentScore) bool { return r.CorePoints != "" })
}

func (s *Session) count(pred func(*StudentScore) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.scores {
		if pred(r) {
			n++
		}
	}
	return n
}

// Selected returns the selected rows in roster order.
func (s *Session) Selected() []StudentScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StudentScore
	for _, id := range s.selectedIDsLocked() {
		out = append(out, *s.scores[id])
	}
	return out
}

// Summary computes all counters in one pass.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Total: len(s.scores), Saving: s.saving}
	for _, r := range s.scores {
		switch r.SaveStatus {
		case StatusPending:
			sum.Pending++
		case StatusError:
			sum.Errors++
		case StatusGraded:
			sum.Graded++
		}
		if r.CorePoints != "" {
			sum.Completed++
		}
		if r.Selected {
			sum.Selected++
		}
	}
	return sum
}

// Presets are the quick bulk-apply values offered for an exercise:
// 0, 5, 10 and the maximum, without duplicates or values above the maximum.
func Presets(bound ExerciseBound) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range []int{0, 5, 10, bound.TotalPoints} {
		if seen[v] || (bound.TotalPoints > 0 && v > bound.TotalPoints) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
