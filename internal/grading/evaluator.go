// Package grading turns a list of weighted assessments into a consistent
// academic result: total marks, percentage, letter grade and GPA.
package grading

import (
	"math"
	"time"
)

// AssessmentType classifies a graded component.
type AssessmentType string

const (
	TypeAssignment AssessmentType = "assignment"
	TypeQuiz       AssessmentType = "quiz"
	TypeMidterm    AssessmentType = "midterm"
	TypeFinal      AssessmentType = "final"
	TypeProject    AssessmentType = "project"
	TypeOther      AssessmentType = "other"
)

// ValidType reports whether t is one of the known assessment types.
func ValidType(t AssessmentType) bool {
	switch t {
	case TypeAssignment, TypeQuiz, TypeMidterm, TypeFinal, TypeProject, TypeOther:
		return true
	}
	return false
}

// Assessment is one graded component of a course offering. Marks are
// assumed well-formed (non-negative, obtained <= max); the handler layer
// validates before anything reaches the evaluator.
type Assessment struct {
	Name          string         `json:"name"`
	Type          AssessmentType `json:"type"`
	MaxMarks      float64        `json:"max_marks"`
	ObtainedMarks float64        `json:"obtained_marks"`
	Weight        *float64       `json:"weight,omitempty"` // 0..100, informational
	Remarks       string         `json:"remarks,omitempty"`
	Date          time.Time      `json:"date"`
}

// Summary holds the derived fields of a grade record. The zero value is
// the result for an empty assessment list.
type Summary struct {
	TotalMarks float64 `json:"total_marks"`
	Percentage float64 `json:"percentage"` // rounded to 2 decimals
	Letter     string  `json:"letter_grade"`
	GPA        float64 `json:"gpa"`
}

// Recompute derives the summary for an assessment list. It is pure: the
// caller invokes it whenever the list is created or replaced and persists
// the result alongside the list, so derived fields can never drift.
func Recompute(assessments []Assessment) Summary {
	if len(assessments) == 0 {
		return Summary{}
	}
	var obtained, max float64
	for _, a := range assessments {
		obtained += a.ObtainedMarks
		max += a.MaxMarks
	}
	var pct float64
	if max > 0 {
		pct = obtained / max * 100
	}
	// Band lookup uses the raw percentage; only the stored value is rounded.
	letter, gpa := Lookup(pct)
	return Summary{
		TotalMarks: obtained,
		Percentage: round2(pct),
		Letter:     letter,
		GPA:        gpa,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
