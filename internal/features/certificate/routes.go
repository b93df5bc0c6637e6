package certificate

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches certificate endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers []gin.HandlerFunc) {
	router.POST("/courses/:courseId/certificate", append(allUsers, handler.Issue)...)
	router.GET("/me/certificates", append(allUsers, handler.Mine)...)
	router.GET("/certificates/:serial", handler.Verify)
}
