package controller

import (
	"classqa/internal/classroom/service"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// StudentController exposes the student directory.
type StudentController struct {
	students *service.StudentService
}

// NewStudentController creates a new StudentController.
func NewStudentController(students *service.StudentService) *StudentController {
	return &StudentController{students: students}
}

// List returns every student.
func (h *StudentController) List(c *gin.Context) {
	students, err := h.students.ListStudents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, students)
}

// Get returns one student.
func (h *StudentController) Get(c *gin.Context) {
	student, err := h.students.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, student)
}
