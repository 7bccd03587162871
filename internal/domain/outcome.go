package domain

// ErrorKind is the closed classification of delivery failures. Every failure
// gets a kind; anything the rules do not match is KindUnknown.
type ErrorKind string

const (
	// KindInvalidToken means the provider reports the target token is
	// malformed or unrecognized.
	KindInvalidToken ErrorKind = "invalid_token"
	// KindUnregistered means the target is no longer valid (uninstalled app,
	// expired Web Push subscription). The caller should prune it.
	KindUnregistered ErrorKind = "unregistered"
	// KindUnauthorized means the gateway credential or VAPID key was rejected.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindUnknown covers everything else, including transport failures.
	KindUnknown ErrorKind = "unknown"
)

func (k ErrorKind) String() string { return string(k) }

func (k ErrorKind) IsValid() bool {
	switch k {
	case KindInvalidToken, KindUnregistered, KindUnauthorized, KindUnknown:
		return true
	}
	return false
}

// DeliveryOutcome is the normalized result of one delivery attempt against
// one target. Target is already truncated for externalization.
type DeliveryOutcome struct {
	Target    string
	OK        bool
	MessageID string
	Kind      ErrorKind
	Err       string
}

// Success builds a successful outcome for a target.
func Success(target, messageID string) DeliveryOutcome {
	return DeliveryOutcome{
		Target:    TruncateTarget(target),
		OK:        true,
		MessageID: messageID,
	}
}

// Failure builds a failed outcome for a target. An invalid kind collapses
// to KindUnknown so the taxonomy stays closed.
func Failure(target string, kind ErrorKind, message string) DeliveryOutcome {
	if !kind.IsValid() {
		kind = KindUnknown
	}
	return DeliveryOutcome{
		Target: TruncateTarget(target),
		Kind:   kind,
		Err:    message,
	}
}

// BatchResult aggregates per-target outcomes of one batch dispatch.
// Sent + Failed always equals len(Outcomes); order matches the input.
type BatchResult struct {
	Sent     int
	Failed   int
	Outcomes []DeliveryOutcome
}

// NewBatchResult tallies a complete outcome list into a BatchResult.
func NewBatchResult(outcomes []DeliveryOutcome) *BatchResult {
	result := &BatchResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.OK {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	return result
}

// Failures returns the failed outcomes in input order.
func (r *BatchResult) Failures() []DeliveryOutcome {
	failures := make([]DeliveryOutcome, 0, r.Failed)
	for _, outcome := range r.Outcomes {
		if !outcome.OK {
			failures = append(failures, outcome)
		}
	}
	return failures
}

// ExpiredTargets enumerates targets classified as unregistered so callers
// can delete them from their stores.
func (r *BatchResult) ExpiredTargets() []string {
	var expired []string
	for _, outcome := range r.Outcomes {
		if !outcome.OK && outcome.Kind == KindUnregistered {
			expired = append(expired, outcome.Target)
		}
	}
	return expired
}
