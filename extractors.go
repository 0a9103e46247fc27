package insightwatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// PayloadExtractor interprets one HTTP response of the insight service.
//
// It returns a ready [Result] with the decoded [Insight], a result that is
// not ready, or an error. The controller treats errors like not-ready
// results, so an extractor only needs to be precise for logging.
//
// Built-in extractors: [DefaultPayloadExtractor], [JSONPathPayloadExtractor]
// and [FirstReady] for composition.
type PayloadExtractor func(body []byte, statusCode int) (Result[Insight], error)

// JSONPathPayloadExtractor returns a [PayloadExtractor] that decodes the
// insight from the JSON object found at path, using dot notation for nested
// objects. An empty path decodes the whole body.
//
// Status handling:
//   - 200: decode the insight, ready
//   - 202 Accepted and 404 Not Found: not ready yet
//   - anything else: error
//
// Example:
//
//	// For response: {"data": {"insight": {...}}}
//	extractor := insightwatch.JSONPathPayloadExtractor("data.insight")
func JSONPathPayloadExtractor(path string) PayloadExtractor {
	var parts []string
	if path != "" {
		parts = strings.Split(path, ".")
	}

	return func(body []byte, statusCode int) (Result[Insight], error) {
		switch statusCode {
		case http.StatusOK:
		case http.StatusAccepted, http.StatusNotFound:
			return Result[Insight]{}, nil
		default:
			return Result[Insight]{}, fmt.Errorf("unexpected status %d", statusCode)
		}

		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return Result[Insight]{}, fmt.Errorf("invalid JSON body: %w", err)
		}

		value, ok := extractJSONPath(data, parts)
		if !ok {
			return Result[Insight]{}, fmt.Errorf("field %q not found in response", path)
		}

		obj, ok := value.(map[string]interface{})
		if !ok {
			return Result[Insight]{}, fmt.Errorf("field %q is not an object", path)
		}

		// re-encode the sub-tree so Insight's json tags apply
		raw, err := json.Marshal(obj)
		if err != nil {
			return Result[Insight]{}, err
		}
		var insight Insight
		if err := json.Unmarshal(raw, &insight); err != nil {
			return Result[Insight]{}, fmt.Errorf("invalid insight: %w", err)
		}

		return Result[Insight]{Ready: true, Payload: insight}, nil
	}
}

// extractJSONPath walks a decoded JSON value using dot notation parts.
func extractJSONPath(data interface{}, parts []string) (interface{}, bool) {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// FirstReady returns a [PayloadExtractor] that tries extractors in order and
// returns the first ready result.
//
// If none is ready, the error of the last extractor is returned, or a result
// that is not ready when the last extractor returned no error.
//
// Example:
//
//	// accept both enveloped and bare insights
//	extractor := insightwatch.FirstReady(
//	    insightwatch.JSONPathPayloadExtractor("insight"),
//	    insightwatch.JSONPathPayloadExtractor(""),
//	)
func FirstReady(extractors ...PayloadExtractor) PayloadExtractor {
	return func(body []byte, statusCode int) (Result[Insight], error) {
		var lastErr error
		for _, extractor := range extractors {
			res, err := extractor(body, statusCode)
			if err == nil && res.Ready {
				return res, nil
			}
			lastErr = err
		}
		return Result[Insight]{}, lastErr
	}
}

// DefaultPayloadExtractor is the [PayloadExtractor] used when none is set on
// an [InsightSource]. It reads the insight service's {"insight": {...}}
// envelope.
var DefaultPayloadExtractor = JSONPathPayloadExtractor("insight")
