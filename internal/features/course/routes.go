package course

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches course and module endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, staff []gin.HandlerFunc) {
	courses := router.Group("/courses")

	courses.GET("", append(allUsers, handler.List)...)
	courses.POST("", append(staff, handler.Create)...)
	courses.GET("/:courseId", append(allUsers, handler.GetByID)...)
	courses.PUT("/:courseId", append(staff, handler.Update)...)
	courses.DELETE("/:courseId", append(staff, handler.Delete)...)

	courses.POST("/:courseId/modules", append(staff, handler.CreateModule)...)
	courses.PUT("/:courseId/modules/:moduleId", append(staff, handler.UpdateModule)...)
	courses.DELETE("/:courseId/modules/:moduleId", append(staff, handler.DeleteModule)...)
}
