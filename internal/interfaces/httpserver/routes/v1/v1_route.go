package v1

import (
	"github.com/gin-gonic/gin"

	"staybook-server/services/chat-api/internal/interfaces/httpserver/routes/v1/chat"
)

type V1Route struct {
	chatRoute *chat.ChatRoute
}

func NewV1Route(chatRoute *chat.ChatRoute) *V1Route {
	return &V1Route{chatRoute: chatRoute}
}

func (route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Group := router.Group("/v1")
	route.chatRoute.RegisterRouter(v1Group)
}
