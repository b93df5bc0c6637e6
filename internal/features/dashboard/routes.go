package dashboard

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches dashboard endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, staff, adminOnly []gin.HandlerFunc) {
	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/courses/:courseId", append(staff, handler.GetCourseStats)...)
		dashboard.GET("/admin", append(adminOnly, handler.GetAdminDashboard)...)
		dashboard.GET("/system-stats", append(adminOnly, handler.GetSystemStats)...)
		dashboard.GET("/logs", append(adminOnly, handler.GetSystemLogs)...)
		dashboard.POST("/logs/clear", append(adminOnly, handler.ClearLogs)...)
	}
}
