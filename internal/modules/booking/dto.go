package booking

type BookRequest struct {
	// StudentID lets an admin book on behalf of a student. Ignored for everyone else.
	StudentID int64 `json:"student_id" binding:"omitempty,gt=0"`
}

type SwapRequest struct {
	OldLessonID int64 `json:"old_lesson_id" binding:"required,gt=0"`
	NewLessonID int64 `json:"new_lesson_id" binding:"required,gt=0"`
}
