// Package moderation classifies user-submitted text before it is published.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"murmur/internal/config"
	"murmur/internal/observability"
)

// Verdict is the classifier's decision for a blob of text.
type Verdict struct {
	Flagged bool
	Reason  string
}

// ReasonUnavailable marks content that was published without a real verdict
// because the classifier was unreachable.
const ReasonUnavailable = "moderation_unavailable"

// Classifier produces a verdict for arbitrary text. Implementations must be
// safe to call with empty or very long input.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Service wraps a Classifier with the application's failure policy and
// timeout. Content creation availability is decoupled from classifier
// availability: under the "allow" policy a classifier failure degrades to a
// not-flagged verdict instead of blocking the write.
type Service struct {
	classifier Classifier
	timeout    time.Duration
	onFailure  string
}

// NewService builds a moderation Service from configuration.
func NewService(classifier Classifier, cfg *config.Config) *Service {
	return &Service{
		classifier: classifier,
		timeout:    cfg.ModerationTimeout,
		onFailure:  cfg.OnModerationFailure,
	}
}

// Review classifies text and applies the failure policy. kind labels the
// content ("post" or "comment") for metrics and logging. The returned error
// is non-nil only under the "reject" policy when the classifier failed.
func (s *Service) Review(ctx context.Context, kind, text string) (Verdict, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		observability.ObserveModeration(kind, observability.VerdictUnavailable, start)
		if s.onFailure == config.ModerationReject {
			return Verdict{}, err
		}
		slog.WarnContext(ctx, "moderation unavailable, publishing unreviewed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return Verdict{Flagged: false, Reason: ReasonUnavailable}, nil
	}

	outcome := observability.VerdictClean
	if verdict.Flagged {
		outcome = observability.VerdictFlagged
	}
	observability.ObserveModeration(kind, outcome, start)

	return verdict, nil
}
