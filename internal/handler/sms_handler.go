package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/sms-gateway/internal/domain"
	"github.com/kursadbilgin/sms-gateway/internal/gateway"
	"github.com/kursadbilgin/sms-gateway/internal/repository"
	"github.com/kursadbilgin/sms-gateway/internal/service"
)

type SMSService interface {
	Send(ctx context.Context, req service.SendRequest) (*service.SendResult, error)
	GetByID(ctx context.Context, id string) (*domain.Dispatch, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Dispatch, error)
}

type SMSHandler struct {
	service SMSService
}

func NewSMSHandler(service SMSService) (*SMSHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("sms service is required")
	}
	return &SMSHandler{service: service}, nil
}

func RegisterSMSRoutes(router fiber.Router, service SMSService) error {
	h, err := NewSMSHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/sms", h.SendSMS)
	v1.Get("/sms/:id", h.GetDispatch)
	v1.Get("/sms", h.ListDispatches)

	return nil
}

type sendSMSRequest struct {
	CorrelationID string `json:"correlationId"`
	To            string `json:"to"`
	From          string `json:"from"`
	Body          string `json:"body"`
	AccountSID    string `json:"accountSid"`
	AuthToken     string `json:"authToken"`
}

type dispatchResponse struct {
	ID             string         `json:"id"`
	CorrelationID  string         `json:"correlationId"`
	Status         string         `json:"status"`
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	ProviderSID    *string        `json:"providerSid,omitempty"`
	ProviderStatus *int           `json:"providerStatus,omitempty"`
	Provider       map[string]any `json:"provider,omitempty"`
	Error          *string        `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type listDispatchesResponse struct {
	Data []dispatchResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

func (h *SMSHandler) SendSMS(c *fiber.Ctx) error {
	var req sendSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		correlationID = requestCorrelationID(c)
	}

	result, err := h.service.Send(c.Context(), service.SendRequest{
		CorrelationID: correlationID,
		To:            req.To,
		From:          req.From,
		Body:          req.Body,
		AccountSID:    req.AccountSID,
		AuthToken:     req.AuthToken,
	})
	if err != nil {
		var limited *domain.RateLimitError
		if errors.As(err, &limited) {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds(limited.RetryAfter))
		}
		return toHTTPError(err)
	}

	body := toDispatchResponse(result.Dispatch)
	if result.Response != nil {
		body.Provider = result.Response.Raw()
	}

	status := fiber.StatusCreated
	if !result.Response.Success() {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(body)
}

func (h *SMSHandler) GetDispatch(c *fiber.Ctx) error {
	dispatch, err := h.service.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDispatchResponse(dispatch))
}

func (h *SMSHandler) ListDispatches(c *fiber.Ctx) error {
	params := repository.ListParams{
		Limit: c.QueryInt("limit", repository.DefaultListLimit),
		To:    c.Query("to"),
	}
	if params.Limit < 1 {
		return toHTTPError(fmt.Errorf("%w: limit must be >= 1", domain.ErrValidation))
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	dispatches, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]dispatchResponse, 0, len(dispatches))
	for i := range dispatches {
		data = append(data, toDispatchResponse(&dispatches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDispatchesResponse{
		Data: data,
		Meta: listMeta{Limit: params.Limit, Count: len(data)},
	})
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toDispatchResponse(d *domain.Dispatch) dispatchResponse {
	if d == nil {
		return dispatchResponse{}
	}

	return dispatchResponse{
		ID:             d.ID,
		CorrelationID:  d.CorrelationID,
		Status:         d.Status.String(),
		Success:        d.Succeeded(),
		Message:        d.Message,
		From:           d.From,
		To:             d.To,
		ProviderSID:    d.ProviderSID,
		ProviderStatus: d.StatusCode,
		Error:          d.Error,
		CreatedAt:      d.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case gateway.IsTransient(err):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case isTransportError(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}

func isTransportError(err error) bool {
	var transportErr *gateway.TransportError
	return errors.As(err, &transportErr)
}
