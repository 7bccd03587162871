package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mottorpay/push-gateway/internal/domain"
	"github.com/mottorpay/push-gateway/internal/message"
	"github.com/mottorpay/push-gateway/internal/provider"
)

type stubFCMSender struct {
	mu    sync.Mutex
	calls []string
	fn    func(envelope *message.FCMEnvelope) (*provider.Response, error)
}

func (s *stubFCMSender) Send(_ context.Context, envelope *message.FCMEnvelope) (*provider.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, envelope.Message.Token)
	s.mu.Unlock()

	if s.fn != nil {
		return s.fn(envelope)
	}
	return &provider.Response{StatusCode: http.StatusOK, MessageID: "projects/p/messages/" + envelope.Message.Token}, nil
}

type stubWebPushSender struct {
	fn func(sub domain.WebPushSubscription) (*provider.Response, error)
}

func (s *stubWebPushSender) Send(_ context.Context, sub domain.WebPushSubscription, _ []byte) (*provider.Response, error) {
	if s.fn != nil {
		return s.fn(sub)
	}
	return &provider.Response{StatusCode: http.StatusCreated}, nil
}

func newTestService(t *testing.T, fcm FCMSender, webPush WebPushSender) *DispatchService {
	t.Helper()

	svc, err := NewDispatchService(message.NewBuilder(""), fcm, webPush, nil, 4, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}
	return svc
}

func TestDispatchTokensAllSucceed(t *testing.T) {
	t.Parallel()

	fcm := &stubFCMSender{}
	svc := newTestService(t, fcm, nil)

	tokens := []string{"tok-1", "tok-2", "tok-3"}
	result, err := svc.DispatchTokens(context.Background(), tokens, domain.Notification{Title: "hi", Body: "there"})
	if err != nil {
		t.Fatalf("DispatchTokens() error = %v", err)
	}

	if result.Sent != 3 || result.Failed != 0 {
		t.Fatalf("Sent/Failed = %d/%d, want 3/0", result.Sent, result.Failed)
	}
	if len(result.Outcomes) != len(tokens) {
		t.Fatalf("outcome count = %d, want %d", len(result.Outcomes), len(tokens))
	}
	for i, outcome := range result.Outcomes {
		if !outcome.OK {
			t.Errorf("outcome %d failed: %+v", i, outcome)
		}
		if outcome.Target != tokens[i] {
			t.Errorf("outcome %d target = %q, want %q (order preserved)", i, outcome.Target, tokens[i])
		}
	}
}

func TestDispatchTokensPartialFailure(t *testing.T) {
	t.Parallel()

	fcm := &stubFCMSender{
		fn: func(envelope *message.FCMEnvelope) (*provider.Response, error) {
			if envelope.Message.Token == "tok-2" {
				return nil, &net.OpError{Op: "dial", Err: errors.New("i/o timeout")}
			}
			return &provider.Response{StatusCode: http.StatusOK, MessageID: "ok"}, nil
		},
	}
	svc := newTestService(t, fcm, nil)

	result, err := svc.DispatchTokens(context.Background(), []string{"tok-1", "tok-2", "tok-3"}, domain.Notification{})
	if err != nil {
		t.Fatalf("DispatchTokens() error = %v", err)
	}

	if result.Sent != 2 || result.Failed != 1 {
		t.Fatalf("Sent/Failed = %d/%d, want 2/1", result.Sent, result.Failed)
	}
	if result.Outcomes[0].OK != true || result.Outcomes[2].OK != true {
		t.Fatal("targets 1 and 3 should succeed despite target 2 failing")
	}
	failed := result.Outcomes[1]
	if failed.OK {
		t.Fatal("target 2 should fail")
	}
	if failed.Kind != domain.KindUnknown {
		t.Fatalf("transport failure kind = %q, want unknown", failed.Kind)
	}
	if failed.Target != "tok-2" {
		t.Fatalf("failed target = %q, want tok-2", failed.Target)
	}
}

func TestDispatchTokensEmptyBatch(t *testing.T) {
	t.Parallel()

	fcm := &stubFCMSender{}
	svc := newTestService(t, fcm, nil)

	_, err := svc.DispatchTokens(context.Background(), nil, domain.Notification{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if len(fcm.calls) != 0 {
		t.Fatal("no delivery call may happen for an empty batch")
	}
}

func TestDispatchTokensOversizeBatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubFCMSender{}, nil)

	tokens := make([]string, maxBatchSize+1)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}

	_, err := svc.DispatchTokens(context.Background(), tokens, domain.Notification{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestDispatchTokensUnconfigured(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)

	_, err := svc.DispatchTokens(context.Background(), []string{"tok-1"}, domain.Notification{})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}

	_, err = svc.SendToToken(context.Background(), "tok-1", domain.Notification{})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("single dispatch error = %v, want ErrConfig", err)
	}
}

func TestDispatchTokensBlankTokenIsPerItemFailure(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubFCMSender{}, nil)

	result, err := svc.DispatchTokens(context.Background(), []string{"tok-1", "  ", "tok-3"}, domain.Notification{})
	if err != nil {
		t.Fatalf("DispatchTokens() error = %v", err)
	}

	if result.Sent != 2 || result.Failed != 1 {
		t.Fatalf("Sent/Failed = %d/%d, want 2/1", result.Sent, result.Failed)
	}
	if result.Outcomes[1].Kind != domain.KindInvalidToken {
		t.Fatalf("blank token kind = %q, want invalid_token", result.Outcomes[1].Kind)
	}
}

func TestDispatchTokensAuthFailureIsUnauthorized(t *testing.T) {
	t.Parallel()

	fcm := &stubFCMSender{
		fn: func(*message.FCMEnvelope) (*provider.Response, error) {
			return nil, fmt.Errorf("%w: token endpoint returned status 401", domain.ErrAuth)
		},
	}
	svc := newTestService(t, fcm, nil)

	result, err := svc.DispatchTokens(context.Background(), []string{"tok-1"}, domain.Notification{})
	if err != nil {
		t.Fatalf("DispatchTokens() error = %v", err)
	}
	if result.Outcomes[0].Kind != domain.KindUnauthorized {
		t.Fatalf("kind = %q, want unauthorized", result.Outcomes[0].Kind)
	}
}

func TestDispatchTokensSlowTargetDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var fastDone atomic.Int64

	fcm := &stubFCMSender{
		fn: func(envelope *message.FCMEnvelope) (*provider.Response, error) {
			if envelope.Message.Token == "tok-slow" {
				<-release
			} else {
				fastDone.Add(1)
			}
			return &provider.Response{StatusCode: http.StatusOK, MessageID: "ok"}, nil
		},
	}
	svc := newTestService(t, fcm, nil)

	done := make(chan *domain.BatchResult, 1)
	go func() {
		result, _ := svc.DispatchTokens(context.Background(), []string{"tok-slow", "tok-a", "tok-b", "tok-c"}, domain.Notification{})
		done <- result
	}()

	// Siblings must finish while tok-slow hangs.
	deadline := time.After(2 * time.Second)
	for fastDone.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("fast targets did not complete while one target hung")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(release)
	result := <-done
	if result.Sent != 4 {
		t.Fatalf("Sent = %d, want 4", result.Sent)
	}
}

func TestDispatchSubscriptions(t *testing.T) {
	t.Parallel()

	webPush := &stubWebPushSender{
		fn: func(sub domain.WebPushSubscription) (*provider.Response, error) {
			if strings.Contains(sub.Endpoint, "gone") {
				return nil, &provider.ProviderError{
					StatusCode: http.StatusGone,
					Kind:       domain.KindUnregistered,
					Message:    "push service returned status 410",
				}
			}
			return &provider.Response{StatusCode: http.StatusCreated}, nil
		},
	}
	svc := newTestService(t, nil, webPush)

	subs := []domain.WebPushSubscription{
		{Endpoint: "https://push.example.com/sub/alive", Keys: domain.SubscriptionKeys{P256dh: "k", Auth: "a"}},
		{Endpoint: "https://push.example.com/sub/gone-1", Keys: domain.SubscriptionKeys{P256dh: "k", Auth: "a"}},
	}

	result, err := svc.DispatchSubscriptions(context.Background(), subs, domain.Notification{})
	if err != nil {
		t.Fatalf("DispatchSubscriptions() error = %v", err)
	}

	if result.Sent != 1 || result.Failed != 1 {
		t.Fatalf("Sent/Failed = %d/%d, want 1/1", result.Sent, result.Failed)
	}

	expired := result.ExpiredTargets()
	if len(expired) != 1 || !strings.HasPrefix(expired[0], "https://push.example") {
		t.Fatalf("ExpiredTargets() = %v, want the gone endpoint (truncated)", expired)
	}
}

func TestDispatchSubscriptionsUnconfigured(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubFCMSender{}, nil)

	_, err := svc.DispatchSubscriptions(context.Background(), []domain.WebPushSubscription{{}}, domain.Notification{})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
}

func TestSendToTokenSingle(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubFCMSender{}, nil)

	outcome, err := svc.SendToToken(context.Background(), "tok123", domain.Notification{})
	if err != nil {
		t.Fatalf("SendToToken() error = %v", err)
	}
	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if outcome.MessageID == "" {
		t.Fatal("MessageID should be propagated")
	}
}

func TestDispatchValidatesContentBeforeNetwork(t *testing.T) {
	t.Parallel()

	fcm := &stubFCMSender{}
	svc := newTestService(t, fcm, nil)

	_, err := svc.DispatchTokens(context.Background(), []string{"tok-1"}, domain.Notification{
		Title: strings.Repeat("a", domain.MaxTitleRunes+1),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if len(fcm.calls) != 0 {
		t.Fatal("no network call may happen when content validation fails")
	}
}
