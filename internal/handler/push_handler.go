package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mottorpay/push-gateway/internal/domain"
	"github.com/mottorpay/push-gateway/internal/observability"
)

// Dispatcher is the dispatch engine consumed by the HTTP surface.
type Dispatcher interface {
	SendToToken(ctx context.Context, token string, n domain.Notification) (domain.DeliveryOutcome, error)
	DispatchTokens(ctx context.Context, tokens []string, n domain.Notification) (*domain.BatchResult, error)
	SendToSubscription(ctx context.Context, sub domain.WebPushSubscription, n domain.Notification) (domain.DeliveryOutcome, error)
	DispatchSubscriptions(ctx context.Context, subs []domain.WebPushSubscription, n domain.Notification) (*domain.BatchResult, error)
}

type PushHandler struct {
	dispatcher Dispatcher
}

func NewPushHandler(dispatcher Dispatcher) (*PushHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &PushHandler{dispatcher: dispatcher}, nil
}

func RegisterPushRoutes(router fiber.Router, dispatcher Dispatcher) error {
	h, err := NewPushHandler(dispatcher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/push", h.SendPush)
	v1.Post("/push/batch", h.SendPushBatch)
	v1.Post("/push/test", h.SendTestPush)
	v1.Post("/webpush", h.SendWebPush)
	v1.Post("/webpush/batch", h.SendWebPushBatch)

	return nil
}

type pushRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

type pushBatchRequest struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

type testPushRequest struct {
	Token string `json:"token"`
}

type webPushRequest struct {
	Subscription domain.WebPushSubscription `json:"subscription"`
	Title        string                     `json:"title"`
	Body         string                     `json:"body"`
	Data         map[string]string          `json:"data"`
}

type webPushBatchRequest struct {
	Subscriptions []domain.WebPushSubscription `json:"subscriptions"`
	Title         string                       `json:"title"`
	Body          string                       `json:"body"`
	Data          map[string]string            `json:"data"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

type targetError struct {
	Target    string `json:"target"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
}

type batchResults struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Errors  []targetError `json:"errors"`
	Expired []string      `json:"expired,omitempty"`
}

type batchResponse struct {
	Success bool         `json:"success"`
	Results batchResults `json:"results"`
}

func (h *PushHandler) SendPush(c *fiber.Ctx) error {
	var req pushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Token) == "" {
		return toHTTPError(fmt.Errorf("%w: token is required", domain.ErrValidation))
	}

	outcome, err := h.dispatcher.SendToToken(dispatchContext(c), req.Token, domain.Notification{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return writeOutcome(c, outcome)
}

func (h *PushHandler) SendPushBatch(c *fiber.Ctx) error {
	var req pushBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.dispatcher.DispatchTokens(dispatchContext(c), req.Tokens, domain.Notification{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(result, false))
}

// SendTestPush fires a canned notification so operators can verify a token
// end to end.
func (h *PushHandler) SendTestPush(c *fiber.Ctx) error {
	var req testPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Token) == "" {
		return toHTTPError(fmt.Errorf("%w: token is required for test", domain.ErrValidation))
	}

	outcome, err := h.dispatcher.SendToToken(dispatchContext(c), req.Token, domain.Notification{
		Title: "🧪 Тестовое уведомление",
		Body:  "Push-уведомления работают!",
		Data:  map[string]string{"type": "test"},
	})
	if err != nil {
		return toHTTPError(err)
	}

	return writeOutcome(c, outcome)
}

func (h *PushHandler) SendWebPush(c *fiber.Ctx) error {
	var req webPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := req.Subscription.Validate(); err != nil {
		return toHTTPError(err)
	}

	outcome, err := h.dispatcher.SendToSubscription(dispatchContext(c), req.Subscription, domain.Notification{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return writeOutcome(c, outcome)
}

func (h *PushHandler) SendWebPushBatch(c *fiber.Ctx) error {
	var req webPushBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.dispatcher.DispatchSubscriptions(dispatchContext(c), req.Subscriptions, domain.Notification{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(result, true))
}

// dispatchContext carries the request id into the dispatch pipeline so
// delivery logs correlate with the HTTP request.
func dispatchContext(c *fiber.Ctx) context.Context {
	var ctx context.Context = c.Context()
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func writeOutcome(c *fiber.Ctx, outcome domain.DeliveryOutcome) error {
	if outcome.OK {
		return c.Status(fiber.StatusOK).JSON(sendResponse{
			Success:   true,
			MessageID: outcome.MessageID,
		})
	}

	return c.Status(fiber.StatusBadGateway).JSON(sendResponse{
		Success:   false,
		Error:     outcome.Err,
		ErrorType: outcome.Kind.String(),
	})
}

func toBatchResponse(result *domain.BatchResult, listExpired bool) batchResponse {
	failures := result.Failures()
	errs := make([]targetError, 0, len(failures))
	for _, failure := range failures {
		errs = append(errs, targetError{
			Target:    failure.Target,
			Error:     failure.Err,
			ErrorType: failure.Kind.String(),
		})
	}

	results := batchResults{
		Success: result.Sent,
		Failed:  result.Failed,
		Errors:  errs,
	}
	if listExpired {
		results.Expired = result.ExpiredTargets()
	}

	return batchResponse{Success: true, Results: results}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConfig):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrAuth):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
