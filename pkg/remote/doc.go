// Package remote maps failures of remote service calls onto throttle kinds.
//
// Integrations either return the typed errors of this package directly (they
// carry their own throttle.Kind) or pass transport errors through a
// Classifier, which recognises HTTP 429 responses and service-specific error
// codes:
//
//	classifier := remote.NewClassifier(remote.ClassifierConfig{
//	    StructuralCodes: []string{"InvalidImageSize", "TooManyFaces"},
//	})
//
//	result, err := throttle.Invoke(ctx, th, "detect", func(ctx context.Context) (*Result, error) {
//	    res, err := sdk.Detect(ctx, img)
//	    return res, classifier.Wrap(err)
//	})
//
// Client is a small JSON-over-HTTP client that produces these errors without
// retrying on its own, leaving retries to the throttle.
package remote
