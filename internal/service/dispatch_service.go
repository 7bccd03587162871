// Package service fans a notification out to N targets, one delivery attempt
// per target, and aggregates per-target outcomes. A batch is best effort:
// one failure never stops or rolls back the rest.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mottorpay/push-gateway/internal/domain"
	"github.com/mottorpay/push-gateway/internal/message"
	"github.com/mottorpay/push-gateway/internal/observability"
	"github.com/mottorpay/push-gateway/internal/provider"
	"github.com/mottorpay/push-gateway/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minConcurrency     = 1
	defaultConcurrency = 8
	maxBatchSize       = 500
)

// Delivery path labels used by the rate limiter and metrics.
const (
	PathFCM     = "fcm"
	PathWebPush = "webpush"
)

// FCMSender performs one FCM v1 delivery call.
type FCMSender interface {
	Send(ctx context.Context, envelope *message.FCMEnvelope) (*provider.Response, error)
}

// WebPushSender performs one encrypted Web Push delivery call.
type WebPushSender interface {
	Send(ctx context.Context, sub domain.WebPushSubscription, payload []byte) (*provider.Response, error)
}

// DispatchService sequences envelope building, token acquisition, delivery
// and classification for single and batch dispatch. Either sender may be nil
// when its path is unconfigured; dispatching there fails with ErrConfig.
type DispatchService struct {
	builder     *message.Builder
	fcm         FCMSender
	webPush     WebPushSender
	limiter     ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewDispatchService(
	builder *message.Builder,
	fcm FCMSender,
	webPush WebPushSender,
	limiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*DispatchService, error) {
	if builder == nil {
		return nil, fmt.Errorf("message builder is required")
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if concurrency < minConcurrency {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		builder:     builder,
		fcm:         fcm,
		webPush:     webPush,
		limiter:     limiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// FCMConfigured reports whether the FCM path can dispatch.
func (s *DispatchService) FCMConfigured() bool { return s != nil && s.fcm != nil }

// WebPushConfigured reports whether the Web Push path can dispatch.
func (s *DispatchService) WebPushConfigured() bool { return s != nil && s.webPush != nil }

// SendToToken dispatches one notification to one device token. The returned
// error covers request-level problems only; delivery failure is reported
// inside the outcome.
func (s *DispatchService) SendToToken(ctx context.Context, token string, n domain.Notification) (domain.DeliveryOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.fcm == nil {
		return domain.DeliveryOutcome{}, fmt.Errorf("%w: FCM credentials are not configured", domain.ErrConfig)
	}
	if err := normalizeContent(&n); err != nil {
		return domain.DeliveryOutcome{}, err
	}

	return s.deliverToken(ctx, token, n), nil
}

// DispatchTokens fans one notification out to every device token. Outcome
// order matches input order; Sent+Failed always equals len(tokens).
func (s *DispatchService) DispatchTokens(ctx context.Context, tokens []string, n domain.Notification) (*domain.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.fcm == nil {
		return nil, fmt.Errorf("%w: FCM credentials are not configured", domain.ErrConfig)
	}
	if err := validateBatchSize(len(tokens)); err != nil {
		return nil, err
	}
	if err := normalizeContent(&n); err != nil {
		return nil, err
	}

	outcomes := make([]domain.DeliveryOutcome, len(tokens))

	g := errgroup.Group{}
	g.SetLimit(s.concurrency)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			// Each slot is written exactly once; failures stay per-item.
			outcomes[i] = s.deliverToken(ctx, token, n)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.NewBatchResult(outcomes)
	observability.WithContextLogger(s.logger, ctx).Info("batch dispatch finished",
		zap.String("path", PathFCM),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// SendToSubscription dispatches one notification to one Web Push
// subscription.
func (s *DispatchService) SendToSubscription(ctx context.Context, sub domain.WebPushSubscription, n domain.Notification) (domain.DeliveryOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.webPush == nil {
		return domain.DeliveryOutcome{}, fmt.Errorf("%w: VAPID keys are not configured", domain.ErrConfig)
	}
	if err := normalizeContent(&n); err != nil {
		return domain.DeliveryOutcome{}, err
	}

	payload, err := s.builder.BuildWebPushPayload(n)
	if err != nil {
		return domain.DeliveryOutcome{}, err
	}

	return s.deliverSubscription(ctx, sub, payload), nil
}

// DispatchSubscriptions fans one notification out to every subscription.
// The payload is built once; encryption is per recipient inside the sender.
func (s *DispatchService) DispatchSubscriptions(ctx context.Context, subs []domain.WebPushSubscription, n domain.Notification) (*domain.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.webPush == nil {
		return nil, fmt.Errorf("%w: VAPID keys are not configured", domain.ErrConfig)
	}
	if err := validateBatchSize(len(subs)); err != nil {
		return nil, err
	}
	if err := normalizeContent(&n); err != nil {
		return nil, err
	}

	payload, err := s.builder.BuildWebPushPayload(n)
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.DeliveryOutcome, len(subs))

	g := errgroup.Group{}
	g.SetLimit(s.concurrency)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			outcomes[i] = s.deliverSubscription(ctx, sub, payload)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.NewBatchResult(outcomes)
	observability.WithContextLogger(s.logger, ctx).Info("batch dispatch finished",
		zap.String("path", PathWebPush),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *DispatchService) deliverToken(ctx context.Context, token string, n domain.Notification) domain.DeliveryOutcome {
	envelope, err := s.builder.BuildFCMEnvelope(token, n)
	if err != nil {
		// A blank token inside a batch is that item's failure, not the batch's.
		return s.failure(ctx, PathFCM, token, domain.KindInvalidToken, err)
	}

	if err := s.limiter.Wait(ctx, PathFCM); err != nil {
		return s.failure(ctx, PathFCM, token, domain.KindUnknown, err)
	}

	if s.metrics != nil {
		s.metrics.IncDispatchInflight(PathFCM)
		defer s.metrics.DecDispatchInflight(PathFCM)
	}

	start := s.now()
	response, err := s.fcm.Send(ctx, envelope)
	if s.metrics != nil {
		s.metrics.ObservePushSendDuration(PathFCM, s.now().Sub(start))
	}

	if err != nil {
		return s.failure(ctx, PathFCM, token, classifyDeliveryError(err), err)
	}

	if s.metrics != nil {
		s.metrics.IncPushSent(PathFCM)
	}
	return domain.Success(token, response.MessageID)
}

func (s *DispatchService) deliverSubscription(ctx context.Context, sub domain.WebPushSubscription, payload []byte) domain.DeliveryOutcome {
	if err := s.limiter.Wait(ctx, PathWebPush); err != nil {
		return s.failure(ctx, PathWebPush, sub.Endpoint, domain.KindUnknown, err)
	}

	if s.metrics != nil {
		s.metrics.IncDispatchInflight(PathWebPush)
		defer s.metrics.DecDispatchInflight(PathWebPush)
	}

	start := s.now()
	_, err := s.webPush.Send(ctx, sub, payload)
	if s.metrics != nil {
		s.metrics.ObservePushSendDuration(PathWebPush, s.now().Sub(start))
	}

	if err != nil {
		kind := classifyDeliveryError(err)
		if errors.Is(err, domain.ErrValidation) {
			kind = domain.KindInvalidToken
		}
		return s.failure(ctx, PathWebPush, sub.Endpoint, kind, err)
	}

	if s.metrics != nil {
		s.metrics.IncPushSent(PathWebPush)
	}
	return domain.Success(sub.Endpoint, "")
}

func (s *DispatchService) failure(ctx context.Context, path, target string, kind domain.ErrorKind, err error) domain.DeliveryOutcome {
	outcome := domain.Failure(target, kind, err.Error())
	if s.metrics != nil {
		s.metrics.IncPushFailed(path, outcome.Kind.String())
	}
	observability.WithContextLogger(s.logger, ctx).Warn("delivery failed",
		zap.String("path", path),
		zap.String("target", outcome.Target),
		zap.String("kind", outcome.Kind.String()),
		zap.Error(err),
	)
	return outcome
}

// classifyDeliveryError reduces any delivery error to an outcome kind.
// Failed token minting counts as unauthorized: the gateway credential, not
// the target, is the problem.
func classifyDeliveryError(err error) domain.ErrorKind {
	if errors.Is(err, domain.ErrAuth) {
		return domain.KindUnauthorized
	}
	return provider.KindOf(err)
}

func normalizeContent(n *domain.Notification) error {
	n.Normalize()
	return n.Validate()
}

func validateBatchSize(size int) error {
	if size == 0 {
		return fmt.Errorf("%w: batch must include at least one target", domain.ErrValidation)
	}
	if size > maxBatchSize {
		return fmt.Errorf("%w: batch size exceeds %d", domain.ErrValidation, maxBatchSize)
	}
	return nil
}
