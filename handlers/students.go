package handlers

import (
	"student-progress-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupStudentRoutes(app *fiber.App, studentService *services.StudentService) {
	app.Get("/students", studentService.GetStudents)
	app.Post("/students", studentService.CreateStudent)
	app.Get("/students/export", studentService.ExportStudentsCSV)
	app.Get("/students/:id", studentService.GetStudent)
	app.Put("/students/:id", studentService.UpdateStudent)
	app.Delete("/students/:id", studentService.DeleteStudent)
	app.Post("/students/:id/testmail", studentService.SendTestEmail)
}
