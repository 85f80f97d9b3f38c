package routes

import (
	"feedgraph/api/handlers"
	"feedgraph/api/middleware"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", handlers.Register)
		publicEndpoints.POST("auth/login", handlers.Login)
	}

	authEndpoints := router.Group("/api/v1/", middleware.AuthMiddleware())
	{
		authEndpoints.POST("auth/logout", handlers.Logout)

		authEndpoints.POST("post/create", handlers.CreatePost)
		authEndpoints.GET("post/get/:id", handlers.GetPost)
		authEndpoints.DELETE("post/delete/:id", handlers.DeletePost)
		authEndpoints.POST("post/like/:id", handlers.LikePost)

		authEndpoints.POST("follow/:user_id", handlers.FollowUser)
		authEndpoints.DELETE("follow/:user_id", handlers.UnfollowUser)

		authEndpoints.POST("friends/add/:user_id", handlers.AddFriend)
		authEndpoints.POST("friends/approve/:user_id", handlers.ApproveFriend)
		authEndpoints.DELETE("friends/delete/:user_id", handlers.DeleteFriend)
		authEndpoints.GET("friends/list", handlers.GetFriends)

		authEndpoints.GET("feed/:user_id", handlers.GetFeed)
		authEndpoints.GET("feed/:user_id/user", handlers.GetUserFeed)
		authEndpoints.GET("feed/:user_id/raw", handlers.GetRawFeed)
		authEndpoints.GET("counters/unseen", handlers.GetUnseenCount)

		authEndpoints.GET("ws/feed", handlers.FeedWebsocket)
	}
	return publicEndpoints
}
