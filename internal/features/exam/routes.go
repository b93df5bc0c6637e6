package exam

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches exam endpoints to the router. Learners start and
// list attempts; grading is restricted to staff.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, staff []gin.HandlerFunc) {
	exam := router.Group("/courses/:courseId/exam")

	exam.POST("/start", append(allUsers, handler.Start)...)
	exam.GET("/attempts", append(allUsers, handler.List)...)
	exam.POST("/attempts/:attemptId/grade", append(staff, handler.Grade)...)
}
