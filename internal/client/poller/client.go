package poller

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"

	chatrequests "staybook-server/services/chat-api/internal/interfaces/httpserver/requests/chat"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/responses"
	chatresponses "staybook-server/services/chat-api/internal/interfaces/httpserver/responses/chat"
	"staybook-server/services/chat-api/internal/utils/httpclients"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// guestConversationHeader mirrors the server's guest credential header.
const guestConversationHeader = "X-Guest-Conversation"

// Client is the thin HTTP client both polling surfaces share. Every call is
// a single short-lived request; the server holds no session between them.
type Client struct {
	resty   *resty.Client
	baseURL string

	bearerToken string
	guestConvID string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBearerToken authenticates requests as an admin or user.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) { c.bearerToken = token }
}

// WithGuestConversation authenticates requests as the guest bound to the
// given conversation.
func WithGuestConversation(conversationID string) ClientOption {
	return func(c *Client) { c.guestConvID = conversationID }
}

// NewClient builds a chat API client for the given base URL.
func NewClient(baseURL string, httpClient *resty.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = httpclients.NewClient("chat-poller", 0)
	}
	c := &Client{
		resty:   httpClient,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	req := c.resty.R().SetContext(ctx)
	if c.bearerToken != "" {
		req.SetHeader("Authorization", "Bearer "+c.bearerToken)
	}
	if c.guestConvID != "" {
		req.SetHeader(guestConversationHeader, c.guestConvID)
	}
	return req
}

// StartConversation opens a guest thread and returns its snapshot. The
// caller must persist the returned ID; it is the guest's only credential.
func (c *Client) StartConversation(ctx context.Context, name, email string) (*chatresponses.ConversationPayload, error) {
	var payload chatresponses.ConversationPayload
	var apiErr responses.ErrorResponse

	resp, err := c.newRequest(ctx).
		SetBody(chatrequests.StartConversationRequest{Name: name, Email: email}).
		SetResult(&payload).
		SetError(&apiErr).
		Post(c.baseURL + "/v1/chat/conversations")
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(ctx, resp, &apiErr)
	}
	return &payload, nil
}

// MyConversation resolves the caller's own thread: a user's single active
// conversation, or the conversation a guest credential points at. NotFound
// means the caller has no thread yet.
func (c *Client) MyConversation(ctx context.Context) (*chatresponses.ConversationPayload, error) {
	var payload chatresponses.ConversationPayload
	var apiErr responses.ErrorResponse

	resp, err := c.newRequest(ctx).
		SetResult(&payload).
		SetError(&apiErr).
		Get(c.baseURL + "/v1/chat/conversations/me")
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(ctx, resp, &apiErr)
	}
	return &payload, nil
}

// FetchMessages retrieves the conversation snapshot and visible history.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) (*chatresponses.MessagesResponse, error) {
	var payload chatresponses.MessagesResponse
	var apiErr responses.ErrorResponse

	resp, err := c.newRequest(ctx).
		SetResult(&payload).
		SetError(&apiErr).
		Get(c.baseURL + "/v1/chat/conversations/" + conversationID + "/messages")
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(ctx, resp, &apiErr)
	}
	return &payload, nil
}

// FetchConversations retrieves the admin inbox for a bucket ("" or
// "archived").
func (c *Client) FetchConversations(ctx context.Context, bucket string) (*chatresponses.ConversationListResponse, error) {
	var payload chatresponses.ConversationListResponse
	var apiErr responses.ErrorResponse

	req := c.newRequest(ctx).SetResult(&payload).SetError(&apiErr)
	if bucket != "" {
		req.SetQueryParam("bucket", bucket)
	}
	resp, err := req.Get(c.baseURL + "/v1/chat/conversations")
	if err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(ctx, resp, &apiErr)
	}
	return &payload, nil
}

// PostMessage sends a message into a conversation.
func (c *Client) PostMessage(ctx context.Context, conversationID *string, content string, image *string) (*chatresponses.MessagePayload, error) {
	var payload chatresponses.MessagePayload
	var apiErr responses.ErrorResponse

	resp, err := c.newRequest(ctx).
		SetBody(chatrequests.PostMessageRequest{ConversationID: conversationID, Content: content, Image: image}).
		SetResult(&payload).
		SetError(&apiErr).
		Post(c.baseURL + "/v1/chat/messages")
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(ctx, resp, &apiErr)
	}
	return &payload, nil
}

// MarkRead flags the counterparty's messages as seen.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	var apiErr responses.ErrorResponse

	resp, err := c.newRequest(ctx).
		SetError(&apiErr).
		Post(c.baseURL + "/v1/chat/conversations/" + conversationID + "/read")
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if resp.IsError() {
		return apiError(ctx, resp, &apiErr)
	}
	return nil
}

// apiError converts an error response body into the platform error taxonomy
// so pollers can branch on CLOSED versus FORBIDDEN versus transient.
func apiError(ctx context.Context, resp *resty.Response, apiErr *responses.ErrorResponse) error {
	errorType := platformerrors.ErrorType(apiErr.Code)
	switch errorType {
	case platformerrors.ErrorTypeNotFound,
		platformerrors.ErrorTypeValidation,
		platformerrors.ErrorTypeConflict,
		platformerrors.ErrorTypeUnauthorized,
		platformerrors.ErrorTypeForbidden,
		platformerrors.ErrorTypeClosed:
		// recognized type, keep it
	default:
		if resp.StatusCode() == http.StatusForbidden {
			errorType = platformerrors.ErrorTypeForbidden
		} else {
			errorType = platformerrors.ErrorTypeInternal
		}
	}

	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", resp.StatusCode())
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, errorType, message, nil, apiErr.ErrorID)
}
