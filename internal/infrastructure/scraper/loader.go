package scraper

import (
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

// sourcesFile is the JSON5 document accepted by LoadStrategies
type sourcesFile struct {
	Sources []sourceDefinition `json:"sources"`
}

type sourceDefinition struct {
	Name                string            `json:"name"`
	BaseURL             string            `json:"baseUrl"`
	SearchURL           string            `json:"searchUrl"`
	MaxPages            int               `json:"maxPages"`
	Pagination          PaginationMode    `json:"pagination"`
	Selectors           Selectors         `json:"selectors"`
	WaitSelector        string            `json:"waitSelector"`
	DismissSelectors    []string          `json:"dismissSelectors"`
	ScrollBeforeExtract bool              `json:"scrollBeforeExtract"`
	ImageAttributes     []string          `json:"imageAttributes"`
	UserAgent           string            `json:"userAgent"`
	Headers             map[string]string `json:"headers"`
	SettleDelay         string            `json:"settleDelay"`
	ScrollDistance      int               `json:"scrollDistance"`
	ScrollDelay         string            `json:"scrollDelay"`
	Retry               struct {
		MaxAttempts int    `json:"maxAttempts"`
		Backoff     string `json:"backoff"`
		Timeout     string `json:"timeout"`
	} `json:"retry"`
}

// LoadStrategies reads a JSON5 sources file and merges it over base.
// A definition whose name matches a base strategy overrides only the fields it sets;
// any other definition is appended as a new source.
func LoadStrategies(path string, base []Strategy) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := json5.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	return mergeStrategies(base, file.Sources)
}

func mergeStrategies(base []Strategy, defs []sourceDefinition) ([]Strategy, error) {
	out := make([]Strategy, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[strings.ToLower(s.Name)] = i
	}

	for _, def := range defs {
		override, err := def.toStrategy()
		if err != nil {
			return nil, err
		}

		i, exists := index[override.Name]
		if !exists {
			out = append(out, override)
			index[override.Name] = len(out) - 1
			log.WithField("source", override.Name).Info("added source from sources file")
			continue
		}

		merged := out[i]
		merged.Headers = maps.Clone(merged.Headers)
		if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge source %s: %w", override.Name, err)
		}
		out[i] = merged
		log.WithField("source", override.Name).Info("merged source overrides from sources file")
	}

	return out, nil
}

func (d sourceDefinition) toStrategy() (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		return Strategy{}, fmt.Errorf("source definition without a name")
	}

	durations := map[string]string{
		"settleDelay":   d.SettleDelay,
		"scrollDelay":   d.ScrollDelay,
		"retry.backoff": d.Retry.Backoff,
		"retry.timeout": d.Retry.Timeout,
	}
	parsed := make(map[string]time.Duration, len(durations))
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil {
			return Strategy{}, fmt.Errorf("source %s: invalid %s %q: %w", name, field, raw, err)
		}
		parsed[field] = value
	}

	return Strategy{
		Name:                name,
		BaseURL:             d.BaseURL,
		SearchURL:           d.SearchURL,
		MaxPages:            d.MaxPages,
		Pagination:          d.Pagination,
		Selectors:           d.Selectors,
		WaitSelector:        d.WaitSelector,
		DismissSelectors:    d.DismissSelectors,
		ScrollBeforeExtract: d.ScrollBeforeExtract,
		ImageAttributes:     d.ImageAttributes,
		UserAgent:           d.UserAgent,
		Headers:             d.Headers,
		SettleDelay:         parsed["settleDelay"],
		ScrollDistance:      d.ScrollDistance,
		ScrollDelay:         parsed["scrollDelay"],
		Retry: RetryPolicy{
			MaxAttempts: d.Retry.MaxAttempts,
			Backoff:     parsed["retry.backoff"],
			Timeout:     parsed["retry.timeout"],
		},
	}, nil
}
