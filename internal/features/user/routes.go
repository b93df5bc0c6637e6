package user

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches user endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, adminOnly []gin.HandlerFunc) {
	me := router.Group("/me")
	me.GET("", append(allUsers, handler.Me)...)
	me.PUT("", append(allUsers, handler.UpdateMe)...)

	users := router.Group("/users")
	users.GET("", append(adminOnly, handler.List)...)
	users.POST("", append(adminOnly, handler.Create)...)
	users.PUT("/:userId", append(adminOnly, handler.Update)...)
	users.DELETE("/:userId", append(adminOnly, handler.Delete)...)
}
