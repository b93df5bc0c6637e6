package achievement

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches award endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers []gin.HandlerFunc) {
	router.GET("/me/awards", append(allUsers, handler.Mine)...)
}
