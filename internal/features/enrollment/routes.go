package enrollment

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches learner progress endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, adminOnly []gin.HandlerFunc) {
	courses := router.Group("/courses/:courseId")

	courses.POST("/enroll", append(allUsers, handler.Enroll)...)
	courses.GET("/progress", append(allUsers, handler.Progress)...)
	courses.POST("/lessons/complete", append(allUsers, handler.Complete)...)
	courses.GET("/lessons/:lessonId/view", append(allUsers, handler.ViewLesson)...)
	courses.DELETE("/enrollments/:userId", append(adminOnly, handler.Reset)...)

	router.GET("/me/enrollments", append(allUsers, handler.MyEnrollments)...)
}
