package config

import (
	"sort"

	"github.com/jpalmerr/insightwatch"
)

// BuildSource converts parsed configuration into an SDK InsightSource.
func BuildSource(cfg *Config) (insightwatch.InsightSource, error) {
	var opts []insightwatch.SourceOption

	if cfg.Token != "" {
		opts = append(opts, insightwatch.WithToken(cfg.Token))
	}

	if cfg.Timeout != 0 {
		opts = append(opts, insightwatch.WithTimeout(cfg.Timeout.Duration()))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, insightwatch.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if extractor := buildExtractor(cfg.Extractor); extractor != nil {
		opts = append(opts, insightwatch.WithPayloadExtractor(extractor))
	}

	return insightwatch.NewInsightSource(cfg.IntelligenceURL, opts...)
}

// SessionOptions returns the controller options described by cfg.
func SessionOptions(cfg *Config) []insightwatch.ControllerOption {
	return []insightwatch.ControllerOption{
		insightwatch.WithInterval(cfg.PollInterval.Duration()),
		insightwatch.WithMaxAttempts(cfg.MaxAttempts),
	}
}

// BuildOptions converts parsed configuration into Board options: the
// source, the issues, the session settings, the port and the title.
func BuildOptions(cfg *Config) ([]insightwatch.Option, error) {
	src, err := BuildSource(cfg)
	if err != nil {
		return nil, err
	}

	opts := []insightwatch.Option{
		insightwatch.WithSource(src),
		insightwatch.WithPort(cfg.Port),
		insightwatch.WithSessionOptions(SessionOptions(cfg)...),
	}
	if len(cfg.Issues) > 0 {
		opts = append(opts, insightwatch.WithIssues(cfg.Issues...))
	}
	if cfg.Title != "" {
		opts = append(opts, insightwatch.WithTitle(cfg.Title))
	}
	return opts, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildExtractor converts ExtractorConfig to a PayloadExtractor.
// Returns nil for default/empty extractors (SDK uses DefaultPayloadExtractor).
func buildExtractor(ec ExtractorConfig) insightwatch.PayloadExtractor {
	switch ec.Type {
	case "json":
		return insightwatch.JSONPathPayloadExtractor(ec.Path)
	default:
		return nil
	}
}
