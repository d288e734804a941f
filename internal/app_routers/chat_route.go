package approuters

import (
	"github.com/gin-gonic/gin"

	"threadhub/internal/auth"
	"threadhub/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	requireUser := auth.RequireUser(container.Verifier)

	chatRoute := router.Group("/api/chats", requireUser)
	{
		chatRoute.POST("/send-chat", container.ChatHandler.SendChat)
		chatRoute.GET("/get-chats", container.ChatHandler.GetChats)
		chatRoute.GET("/get-chat-by-thread", container.ChatHandler.GetChatByThread)
		chatRoute.GET("/get-chat-by-user", container.ChatHandler.GetChatByUser)
	}

	threadRoute := router.Group("/api/threads", requireUser)
	{
		threadRoute.POST("/group", container.ChatHandler.CreateGroupThread)
		threadRoute.POST("/:threadId/messages", container.ChatHandler.SendMessageToThread)
	}
}
