package service_test

import (
	"strconv"
	"testing"

	"classqa/internal/classroom/service"
	pkgerrors "classqa/pkg/errors"
)

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestStudentService(t *testing.T) {
	directory := newFakeDirectory(map[string]string{"s1": "Ada", "s2": "Grace"})
	svc := service.NewStudentService(directory)

	all, err := svc.ListStudents(t.Context())
	if err != nil || len(all) != 2 || all[0].ID != "s1" {
		t.Fatalf("unexpected list: %+v, %v", all, err)
	}
	got, err := svc.GetStudent(t.Context(), "s2")
	if err != nil || got.Name != "Grace" {
		t.Fatalf("unexpected student: %+v, %v", got, err)
	}
	_, err = svc.GetStudent(t.Context(), "s9")
	expectCode(t, err, pkgerrors.StudentNotFound)

	directory.fail(errBoom)
	_, err = svc.ListStudents(t.Context())
	expectCode(t, err, pkgerrors.RosterUnavailable)
}
