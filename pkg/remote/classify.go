package remote

import (
	"errors"
	"net/http"
	"strings"

	"mercator-hq/quotaguard/pkg/throttle"
)

// DefaultRateLimitCodes are error codes treated as rate limiting regardless
// of the HTTP status they arrive with.
var DefaultRateLimitCodes = []string{"TooManyRequests", "RateLimitExceeded", "Throttled"}

// ClassifierConfig lists the service-specific error codes a Classifier
// recognises. Codes are matched case-insensitively.
type ClassifierConfig struct {
	// RateLimitCodes mark transient capacity errors.
	// Default: DefaultRateLimitCodes
	RateLimitCodes []string

	// StructuralCodes mark requests that exceed a hard per-call limit.
	StructuralCodes []string
}

// Classifier maps errors from a remote integration to throttle kinds.
type Classifier struct {
	rateLimitCodes  map[string]struct{}
	structuralCodes map[string]struct{}
}

// NewClassifier creates a Classifier from cfg.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.RateLimitCodes == nil {
		cfg.RateLimitCodes = DefaultRateLimitCodes
	}
	return &Classifier{
		rateLimitCodes:  codeSet(cfg.RateLimitCodes),
		structuralCodes: codeSet(cfg.StructuralCodes),
	}
}

func codeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[strings.ToLower(c)] = struct{}{}
	}
	return set
}

// Classify returns the throttle kind of err. Rate limiting wins over a
// structural code when both apply.
func (c *Classifier) Classify(err error) throttle.Kind {
	if err == nil {
		return throttle.KindOther
	}

	if kind := throttle.KindOf(err); kind != throttle.KindOther {
		return kind
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		code := strings.ToLower(remoteErr.Code)
		if remoteErr.StatusCode == http.StatusTooManyRequests {
			return throttle.KindRateLimited
		}
		if _, ok := c.rateLimitCodes[code]; ok && code != "" {
			return throttle.KindRateLimited
		}
		if _, ok := c.structuralCodes[code]; ok && code != "" {
			return throttle.KindStructuralInvalid
		}
	}

	return throttle.KindOther
}

// Wrap attaches the classification of err so throttle.Invoke can act on it.
// Unclassified errors are returned unchanged.
func (c *Classifier) Wrap(err error) error {
	if err == nil {
		return nil
	}

	kind := c.Classify(err)
	if kind == throttle.KindOther || throttle.KindOf(err) == kind {
		return err
	}
	return throttle.NewError(kind, err)
}
