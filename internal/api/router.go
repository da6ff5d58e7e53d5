package api

import "github.com/gin-gonic/gin"

// Register mounts the /api routes on the router.
func Register(r gin.IRouter, students *StudentHandler, status *StatusHandler) {
	api := r.Group("/api")

	api.GET("/collection/today", status.CollectionToday)
	api.GET("/collection/:date", status.CollectionOn)

	api.GET("/students", students.List)
	api.GET("/students/search", students.Search)
	api.GET("/students/admitted/:date", students.AdmittedOn)
	api.GET("/students/admitted/day/:day", status.PreviousDayStatus)
	api.GET("/students/manageable-on-date/:date", status.ManageableOnDate)
	api.GET("/students/:id", students.Get)
	api.POST("/students", students.Create)

	api.PUT("/student-payment-status/:date/:studentName", status.SetStatus)
}
