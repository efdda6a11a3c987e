package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainchat "staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "staybook-server/services/chat-api/internal/interfaces/httpserver/requests/chat"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/responses"
	chatresponses "staybook-server/services/chat-api/internal/interfaces/httpserver/responses/chat"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

type ChatRoute struct {
	handler *chathandler.ChatHandler
}

func NewChatRoute(handler *chathandler.ChatHandler) *ChatRoute {
	return &ChatRoute{handler: handler}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	chatGroup := router.Group("/chat")

	conversations := chatGroup.Group("/conversations")
	conversations.POST("", route.startConversation)
	conversations.GET("", middlewares.RequireAdmin(), route.listConversations)
	conversations.GET("/me", middlewares.RequireIdentity(), route.myConversation)
	conversations.GET("/:conv_public_id/messages", middlewares.RequireIdentity(), route.listMessages)
	conversations.POST("/:conv_public_id/read", middlewares.RequireIdentity(), route.markRead)
	conversations.POST("/:conv_public_id/status", middlewares.RequireAdmin(), route.setStatus)
	conversations.POST("/:conv_public_id/clear", middlewares.RequireIdentity(), route.clearHistory)
	conversations.DELETE("/:conv_public_id", middlewares.RequireAdmin(), route.deleteConversation)

	chatGroup.POST("/messages", middlewares.RequireIdentity(), route.postMessage)
}

// startConversation godoc
// @Summary Start a guest conversation
// @Description Opens a support thread for an anonymous visitor. The returned conversation ID is the guest's only credential.
// @Tags Chat API
// @Accept json
// @Produce json
// @Param request body chatrequests.StartConversationRequest true "Pre-chat form"
// @Success 201 {object} chatresponses.ConversationPayload "Conversation created"
// @Failure 400 {object} responses.ErrorResponse "Invalid request body"
// @Router /v1/chat/conversations [post]
func (route *ChatRoute) startConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	var req chatrequests.StartConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "7d9f1b3a-5c2e-4a8b-9d6f-0e2a4c6b8d11")
		return
	}

	conv, err := route.handler.StartGuestConversation(ctx, req.Name, req.Email)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to start conversation")
		return
	}

	reqCtx.JSON(http.StatusCreated, chatresponses.FromConversation(conv))
}

// listConversations godoc
// @Summary List conversations
// @Description Lists the admin inbox, newest activity first. Use bucket=archived for the archived view.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Param bucket query string false "active (default) or archived"
// @Success 200 {object} chatresponses.ConversationListResponse
// @Failure 403 {object} responses.ErrorResponse "Admin access required"
// @Router /v1/chat/conversations [get]
func (route *ChatRoute) listConversations(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)

	var params chatrequests.ListConversationsQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters", "1f3d5b7a-9c0e-4b2d-8a4f-6c8e0a2b4d15")
		return
	}

	convs, err := route.handler.ListConversations(ctx, ident, params.Bucket == "archived")
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list conversations")
		return
	}

	reqCtx.JSON(http.StatusOK, chatresponses.NewConversationListResponse(convs))
}

// myConversation godoc
// @Summary Resolve the caller's conversation
// @Description Returns the caller's own thread: a user's single active conversation, or the conversation a guest's stored credential points at. Admins use the inbox listing instead.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Success 200 {object} chatresponses.ConversationPayload
// @Failure 403 {object} responses.ErrorResponse "Admin caller, or conversation closed (code CLOSED)"
// @Failure 404 {object} responses.ErrorResponse "No conversation yet"
// @Router /v1/chat/conversations/me [get]
func (route *ChatRoute) myConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)

	conv, err := route.handler.MyConversation(ctx, ident)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to resolve conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, chatresponses.FromConversation(conv))
}

// listMessages godoc
// @Summary Fetch conversation messages
// @Description Returns the conversation snapshot plus its messages, filtered by the caller's visibility cutoff. Polling clients repeat this call on the advertised interval.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Param conv_public_id path string true "Conversation public ID"
// @Success 200 {object} chatresponses.MessagesResponse
// @Failure 403 {object} responses.ErrorResponse "Not a participant, or conversation closed (code CLOSED)"
// @Failure 404 {object} responses.ErrorResponse "Conversation not found"
// @Router /v1/chat/conversations/{conv_public_id}/messages [get]
func (route *ChatRoute) listMessages(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)
	convPublicID := reqCtx.Param("conv_public_id")

	conv, msgs, err := route.handler.Messages(ctx, ident, convPublicID)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to fetch messages")
		return
	}

	reqCtx.JSON(http.StatusOK, chatresponses.NewMessagesResponse(conv, msgs, route.handler.PollInterval()))
}

// postMessage godoc
// @Summary Send a message
// @Description Appends a message. Authenticated users may omit conversation_id to target their single active conversation.
// @Tags Chat API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body chatrequests.PostMessageRequest true "Message payload"
// @Success 201 {object} chatresponses.MessagePayload
// @Failure 400 {object} responses.ErrorResponse "Empty payload or missing conversation"
// @Failure 403 {object} responses.ErrorResponse "Not a participant, or conversation closed (code CLOSED)"
// @Router /v1/chat/messages [post]
func (route *ChatRoute) postMessage(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)

	var req chatrequests.PostMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "3b5d7f9a-1c2e-4d6b-8a0c-2e4a6c8b0d19")
		return
	}

	msg, err := route.handler.PostMessage(ctx, ident, domainchat.PostMessageInput{
		ConversationPublicID: req.ConversationID,
		Content:              req.Content,
		Image:                req.Image,
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to send message")
		return
	}

	reqCtx.JSON(http.StatusCreated, chatresponses.FromMessage(msg))
}

// markRead godoc
// @Summary Mark messages read
// @Description Flags the counterparty's messages as seen. For admins this also zeroes the conversation's unread counter.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Param conv_public_id path string true "Conversation public ID"
// @Success 204 "Marked"
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chat/conversations/{conv_public_id}/read [post]
func (route *ChatRoute) markRead(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)
	convPublicID := reqCtx.Param("conv_public_id")

	if err := route.handler.MarkRead(ctx, ident, convPublicID); err != nil {
		responses.HandleError(reqCtx, err, "failed to mark messages read")
		return
	}

	reqCtx.Status(http.StatusNoContent)
}

// setStatus godoc
// @Summary Change conversation status
// @Description Moves a conversation through active -> archived -> closed. Closed is terminal.
// @Tags Chat API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param conv_public_id path string true "Conversation public ID"
// @Param request body chatrequests.SetStatusRequest true "Target status"
// @Success 200 {object} chatresponses.ConversationPayload
// @Failure 409 {object} responses.ErrorResponse "Illegal transition"
// @Router /v1/chat/conversations/{conv_public_id}/status [post]
func (route *ChatRoute) setStatus(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)
	convPublicID := reqCtx.Param("conv_public_id")

	var req chatrequests.SetStatusRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid status", "5d7f9b1c-3e4a-4f8b-9c2d-4a6c8e0b2d23")
		return
	}

	conv, err := route.handler.SetStatus(ctx, ident, convPublicID, domainchat.ConversationStatus(req.Status))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to change status")
		return
	}

	reqCtx.JSON(http.StatusOK, chatresponses.FromConversation(conv))
}

// clearHistory godoc
// @Summary Clear visible history
// @Description Hides prior messages from the calling participant. Admin reads are never filtered; no rows are deleted.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Param conv_public_id path string true "Conversation public ID"
// @Success 204 "Cleared"
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chat/conversations/{conv_public_id}/clear [post]
func (route *ChatRoute) clearHistory(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)
	convPublicID := reqCtx.Param("conv_public_id")

	if err := route.handler.ClearHistory(ctx, ident, convPublicID); err != nil {
		responses.HandleError(reqCtx, err, "failed to clear history")
		return
	}

	reqCtx.Status(http.StatusNoContent)
}

// deleteConversation godoc
// @Summary Delete a conversation
// @Description Permanently removes a conversation and every message in it.
// @Tags Chat API
// @Security BearerAuth
// @Produce json
// @Param conv_public_id path string true "Conversation public ID"
// @Success 204 "Deleted"
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chat/conversations/{conv_public_id} [delete]
func (route *ChatRoute) deleteConversation(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	ident, _ := middlewares.IdentityFromContext(reqCtx)
	convPublicID := reqCtx.Param("conv_public_id")

	if err := route.handler.DeleteConversation(ctx, ident, convPublicID); err != nil {
		responses.HandleError(reqCtx, err, "failed to delete conversation")
		return
	}

	reqCtx.Status(http.StatusNoContent)
}
