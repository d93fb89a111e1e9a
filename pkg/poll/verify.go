package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// VerificationFailedMessage is shown when a resource did not verify within
// the allowed attempts.
const VerificationFailedMessage = "The resource could not be verified. Check the details below and try again, or continue without verification."

// Notifier surfaces verification progress to the user. Every method is
// called at most once per Verify.
type Notifier interface {
	Verifying(resource *kore.Resource)
	Verified(resource *kore.Resource)
	Failed(resource *kore.Resource, message string, details []string)
}

type nopNotifier struct{}

func (nopNotifier) Verifying(*kore.Resource) {}
func (nopNotifier) Verified(*kore.Resource) {}
func (nopNotifier) Failed(*kore.Resource, string, []string) {}

// VerificationResult is the outcome of Verify.
type VerificationResult struct {
	// Verified is true when the resource reached Success.
	Verified bool
	// Resource is the last fetched copy, or the submitted one when no fetch
	// succeeded.
	Resource *kore.Resource
	// Attempts is the attempt counter when verification ended.
	Attempts int
	// Message and Details are set on failure.
	Message string
	Details []string

	verifier *Verifier
}

// ContinueWithoutVerification fetches the resource once and accepts it as it
// is, whatever its status. Only meaningful after a failed verification.
func (r *VerificationResult) ContinueWithoutVerification(ctx context.Context) (*kore.Resource, error) {
	if r.Verified {
		return r.Resource, nil
	}

	resource, err := r.verifier.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching unverified resource: %w", err)
	}

	r.verifier.metrics.observeVerification(OutcomeSkipped)

	if r.verifier.onSuccess != nil {
		r.verifier.onSuccess(resource)
	}

	return resource, nil
}

// Verifier re-reads a just-submitted resource a fixed number of times, with
// a fixed delay before each read, until its status is Success.
type Verifier struct {
	fetch       FetchFunc
	notifier    Notifier
	maxAttempts int
	delay       time.Duration
	onSuccess   Callback
	logger      kore.Logger
	metrics     *Metrics
}

// VerifyOption configures a Verifier.
type VerifyOption func(*Verifier)

// WithNotifier sets the progress notifier.
func WithNotifier(notifier Notifier) VerifyOption {
	return func(v *Verifier) {
		if notifier != nil {
			v.notifier = notifier
		}
	}
}

// WithMaxAttempts overrides the attempt ceiling.
func WithMaxAttempts(attempts int) VerifyOption {
	return func(v *Verifier) {
		if attempts > 0 {
			v.maxAttempts = attempts
		}
	}
}

// WithDelay overrides the wait before each attempt.
func WithDelay(delay time.Duration) VerifyOption {
	return func(v *Verifier) {
		if delay >= 0 {
			v.delay = delay
		}
	}
}

// OnVerified is called with the accepted resource, either verified or
// accepted through ContinueWithoutVerification.
func OnVerified(fn Callback) VerifyOption {
	return func(v *Verifier) {
		v.onSuccess = fn
	}
}

// WithVerifyLogger reports fetch errors.
func WithVerifyLogger(logger kore.Logger) VerifyOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithVerifyMetrics records verification outcomes.
func WithVerifyMetrics(metrics *Metrics) VerifyOption {
	return func(v *Verifier) {
		v.metrics = metrics
	}
}

// NewVerifier creates a verifier that re-reads the resource with fetch.
func NewVerifier(fetch FetchFunc, opts ...VerifyOption) *Verifier {
	v := &Verifier{
		fetch:       fetch,
		notifier:    nopNotifier{},
		maxAttempts: constants.VerificationMaxAttempts,
		delay:       constants.VerificationDelay,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify waits for resource to verify, starting from attempt (normally 0).
// A failed verification is not an error: it is reported through the result
// and the notifier. Only cancellation of ctx returns an error.
func (v *Verifier) Verify(ctx context.Context, resource *kore.Resource, attempt int) (*VerificationResult, error) {
	if attempt <= 0 {
		attempt = 0
		v.notifier.Verifying(resource)
	}

	last := resource

	for attempt < v.maxAttempts {
		err := v.wait(ctx)
		if err != nil {
			return nil, err
		}

		fetched, err := v.fetch(ctx)
		attempt++

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("verification cancelled: %w", ctx.Err())
			}

			if v.logger != nil {
				v.logger.Warn("verification fetch failed", map[string]interface{}{
					"attempt": attempt,
					"error":   err.Error(),
				})
			}

			continue
		}

		if fetched != nil {
			last = fetched
		}

		if fetched.StatusValue() == kore.StatusSuccess {
			v.notifier.Verified(fetched)
			v.metrics.observeVerification(OutcomeVerified)

			if v.onSuccess != nil {
				v.onSuccess(fetched)
			}

			return &VerificationResult{
				Verified: true,
				Resource: fetched,
				Attempts: attempt,
				verifier: v,
			}, nil
		}
	}

	details := last.ConditionDetails()
	v.notifier.Failed(last, VerificationFailedMessage, details)
	v.metrics.observeVerification(OutcomeFailed)

	return &VerificationResult{
		Resource: last,
		Attempts: attempt,
		Message:  VerificationFailedMessage,
		Details:  details,
		verifier: v,
	}, nil
}

func (v *Verifier) wait(ctx context.Context) error {
	if v.delay == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(v.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("verification cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
