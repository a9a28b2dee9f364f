package service

import (
	"context"

	"classqa/internal/classroom/model"
	"classqa/internal/student"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

// lookupName resolves a display name. Unknown ids and directory failures both
// degrade to model.UnknownStudentName.
func lookupName(ctx context.Context, students student.Directory, studentID string) string {
	if students == nil {
		return model.UnknownStudentName
	}
	entry, ok, err := students.Lookup(ctx, studentID)
	if err != nil {
		logger.Warn(ctx, "resolve student name failed", zap.String("student_id", studentID), zap.Error(err))
		return model.UnknownStudentName
	}
	if !ok || entry.Name == "" {
		return model.UnknownStudentName
	}
	return entry.Name
}

func enrichAnswers(ctx context.Context, students student.Directory, answers []*model.Answer) []*model.NamedAnswer {
	named := make([]*model.NamedAnswer, 0, len(answers))
	cache := make(map[string]string)
	for _, a := range answers {
		name, ok := cache[a.StudentID]
		if !ok {
			name = lookupName(ctx, students, a.StudentID)
			cache[a.StudentID] = name
		}
		named = append(named, &model.NamedAnswer{Answer: *a, StudentName: name})
	}
	return named
}
