package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/sms-gateway/internal/domain"
	"github.com/kursadbilgin/sms-gateway/internal/gateway"
	"github.com/kursadbilgin/sms-gateway/internal/observability"
	"github.com/kursadbilgin/sms-gateway/internal/ratelimit"
	"github.com/kursadbilgin/sms-gateway/internal/repository"
	"go.uber.org/zap"
)

const recordTimeout = 5 * time.Second

// SendRequest is one caller request. Empty From, AccountSID and AuthToken fall back
// to the gateway configuration for this call only.
type SendRequest struct {
	CorrelationID string
	To            string
	From          string
	Body          string
	AccountSID    string
	AuthToken     string
}

// SendResult pairs the audit record with the normalized provider response.
// Response is nil when the provider was never reached.
type SendResult struct {
	Dispatch *domain.Dispatch
	Response *gateway.Response
}

type SMSService struct {
	gateway           gateway.Gateway
	dispatches        repository.DispatchRepository
	rateLimiter       ratelimit.RateLimiter
	defaultFrom       string
	defaultAccountSID string
	logger            *zap.Logger
	metrics           *observability.Metrics
	now               func() time.Time
	newID             func() string
}

func NewSMSService(
	gw gateway.Gateway,
	defaults gateway.Config,
	dispatches repository.DispatchRepository,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*SMSService, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if strings.TrimSpace(defaults.From) == "" {
		return nil, fmt.Errorf("default sender is required")
	}
	if dispatches == nil {
		dispatches = repository.NopDispatchRepo{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SMSService{
		gateway:           gw,
		dispatches:        dispatches,
		rateLimiter:       rateLimiter,
		defaultFrom:       strings.TrimSpace(defaults.From),
		defaultAccountSID: strings.TrimSpace(defaults.AccountSID),
		logger:            logger,
		now:               time.Now,
		newID:             uuid.NewString,
	}, nil
}

func (s *SMSService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Send admits the request against the sender's budget, calls the gateway once
// and records the outcome. Provider rejections are returned as a result with an
// unsuccessful Response; validation, throttling and transport failures are
// returned as errors. A refused send fails fast with *domain.RateLimitError.
func (s *SMSService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	msg := domain.Message{
		To:   strings.TrimSpace(req.To),
		From: strings.TrimSpace(req.From),
		Body: req.Body,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	sender := msg.From
	if sender == "" {
		sender = s.defaultFrom
	}
	accountSID := strings.TrimSpace(req.AccountSID)
	if accountSID == "" {
		accountSID = s.defaultAccountSID
	}

	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		if fromCtx, ok := observability.CorrelationIDFromContext(ctx); ok {
			correlationID = fromCtx
		} else {
			correlationID = s.newID()
		}
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("from", sender),
		zap.String("to", observability.MaskPhone(msg.To)),
	)

	decision, err := s.rateLimiter.Allow(ctx, sender)
	if err != nil {
		logger.Error("rate limit check failed", zap.Error(err))
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		s.metrics.IncSMSFailed(sender, observability.ReasonRateLimited)
		logger.Warn("sms throttled", zap.Duration("retryAfter", decision.RetryAfter))
		return nil, &domain.RateLimitError{Sender: sender, RetryAfter: decision.RetryAfter}
	}

	s.metrics.IncInflight()
	start := s.now()
	resp, sendErr := s.gateway.Notify(ctx, msg.Body, gateway.Options{
		AccountSID: accountSID,
		AuthToken:  strings.TrimSpace(req.AuthToken),
		From:       sender,
		To:         msg.To,
	})
	elapsed := s.now().Sub(start)
	s.metrics.DecInflight()

	dispatch := &domain.Dispatch{
		ID:            s.newID(),
		CorrelationID: correlationID,
		AccountSID:    accountSID,
		From:          sender,
		To:            msg.To,
		Body:          msg.Body,
		CreatedAt:     s.now().UTC(),
	}

	switch {
	case sendErr != nil:
		dispatch.Status = domain.StatusFailed
		dispatch.Message = "provider unreachable"
		errText := sendErr.Error()
		dispatch.Error = &errText

		s.metrics.ObserveSMSSendDuration("error", elapsed)
		s.metrics.IncSMSFailed(sender, observability.ReasonTransportError)
		logger.Error("sms transport failure",
			zap.Duration("elapsed", elapsed),
			zap.Bool("transient", gateway.IsTransient(sendErr)),
			zap.Error(sendErr),
		)
	case resp.Success():
		dispatch.Status = domain.StatusSent
		s.metrics.ObserveSMSSendDuration("sent", elapsed)
		s.metrics.IncSMSSent(sender)
	default:
		dispatch.Status = domain.StatusRejected
		s.metrics.ObserveSMSSendDuration("rejected", elapsed)
		s.metrics.IncSMSFailed(sender, observability.ReasonProviderRejected)
	}

	if resp != nil {
		dispatch.Message = resp.Message()
		if code := resp.StatusCode(); code > 0 {
			dispatch.StatusCode = &code
		}
		if sid := resp.ProviderID(); sid != "" {
			dispatch.ProviderSID = &sid
		}
		logger.Info("sms dispatched",
			zap.String("dispatchId", dispatch.ID),
			zap.String("status", dispatch.Status.String()),
			zap.Int("providerStatus", resp.StatusCode()),
			zap.String("message", resp.Message()),
			zap.Duration("elapsed", elapsed),
		)
	}

	s.record(ctx, logger, dispatch)

	if sendErr != nil {
		return &SendResult{Dispatch: dispatch}, fmt.Errorf("failed to send sms: %w", sendErr)
	}

	return &SendResult{Dispatch: dispatch, Response: resp}, nil
}

// record stores the dispatch on a detached context so a caller that hung up
// still leaves an audit row. Storage failures never fail the send.
func (s *SMSService) record(ctx context.Context, logger *zap.Logger, dispatch *domain.Dispatch) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.dispatches.Create(recordCtx, dispatch); err != nil {
		logger.Error("failed to record dispatch",
			zap.String("dispatchId", dispatch.ID),
			zap.Error(err),
		)
	}
}

func (s *SMSService) GetByID(ctx context.Context, id string) (*domain.Dispatch, error) {
	trimmed := strings.TrimSpace(id)
	if _, err := uuid.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("%w: invalid dispatch id %q", domain.ErrValidation, id)
	}
	return s.dispatches.GetByID(ctx, trimmed)
}

func (s *SMSService) List(ctx context.Context, params repository.ListParams) ([]domain.Dispatch, error) {
	if params.Limit < 0 || params.Limit > repository.MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, repository.MaxListLimit)
	}
	params.To = strings.TrimSpace(params.To)
	return s.dispatches.List(ctx, params)
}
