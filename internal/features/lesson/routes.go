package lesson

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches lesson authoring endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, staff []gin.HandlerFunc) {
	courses := router.Group("/courses/:courseId")

	courses.POST("/modules/:moduleId/lessons", append(staff, handler.Create)...)
	courses.GET("/lessons/:lessonId", append(staff, handler.GetByID)...)
	courses.PUT("/lessons/:lessonId", append(staff, handler.Update)...)
	courses.DELETE("/lessons/:lessonId", append(staff, handler.Delete)...)
}
