package service

import (
	"context"
	"fmt"

	"classqa/internal/classroom/model"
	"classqa/internal/student"
	pkgerrors "classqa/pkg/errors"
)

// StudentService exposes the student directory.
type StudentService struct {
	directory student.Directory
}

// NewStudentService creates a new StudentService.
func NewStudentService(directory student.Directory) *StudentService {
	return &StudentService{directory: directory}
}

// ListStudents returns the roster in file order.
func (s *StudentService) ListStudents(ctx context.Context) ([]model.Student, error) {
	students, err := s.directory.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list students failed: %w", err), pkgerrors.RosterUnavailable)
	}
	return students, nil
}

// GetStudent returns one roster entry.
func (s *StudentService) GetStudent(ctx context.Context, id string) (model.Student, error) {
	entry, ok, err := s.directory.Lookup(ctx, id)
	if err != nil {
		return model.Student{}, pkgerrors.Wrap(fmt.Errorf("lookup student failed: %w", err), pkgerrors.RosterUnavailable)
	}
	if !ok {
		return model.Student{}, pkgerrors.New(pkgerrors.StudentNotFound).WithDetail("student_id", id)
	}
	return entry, nil
}
