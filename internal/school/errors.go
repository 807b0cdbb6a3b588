package school

import "errors"

// Business-rule rejections. Handlers map these to 4xx responses; nothing
// here is fatal to the process.
var (
	ErrNotFound            = errors.New("record not found")
	ErrCourseFull          = errors.New("course is full")
	ErrDuplicateEnrollment = errors.New("student is already enrolled in this course")
	ErrAlreadyPublished    = errors.New("grade is already published")
	ErrNotEnrolled         = errors.New("enrollment is not active")
)
