package localengine

import (
	"errors"
	"fmt"
	"strings"

	opticks "github.com/goliatone/go-opticks"
	"github.com/goliatone/go-opticks/internal/hydrate"
	"github.com/goliatone/go-opticks/pkg/rules"
)

// ErrInvalidDefinition is returned for malformed definitions.
var ErrInvalidDefinition = errors.New("localengine: invalid definition")

// Document is the decoded form of a definition.
type Document struct {
	Evaluator   string       `json:"evaluator,omitempty"`
	Features    []Feature    `json:"features,omitempty"`
	Experiments []Experiment `json:"experiments,omitempty"`
}

// Feature is a boolean toggle.
type Feature struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
	Rule    string `json:"rule,omitempty"`
}

// Experiment is a variation toggle. Audience gates the whole experiment and
// the first variation whose rule matches wins.
type Experiment struct {
	Key        string      `json:"key"`
	Audience   string      `json:"audience,omitempty"`
	Variations []Variation `json:"variations"`
}

// Variation is one experiment bucket.
type Variation struct {
	Key  string `json:"key"`
	Rule string `json:"rule,omitempty"`
}

// Parse decodes a definition blob. Unknown fields are ignored.
func Parse(definition opticks.Definition) (Document, error) {
	return parse(definition, false)
}

// ParseStrict is Parse but rejects fields the format does not declare.
func ParseStrict(definition opticks.Definition) (Document, error) {
	return parse(definition, true)
}

func parse(definition opticks.Definition, strict bool) (Document, error) {
	opts := []hydrate.DecoderOption[Document]{
		hydrate.WithPreHook[Document](normalizeEvaluator),
		hydrate.WithPostHook[Document](func(_ hydrate.Context, doc *Document) error {
			return doc.Validate()
		}),
	}
	if strict {
		opts = append(opts, hydrate.WithDisallowUnknownFields[Document]())
	}
	doc, err := hydrate.NewDecoder(opts...).Decode(hydrate.Context{Source: "definition"}, definition)
	if err != nil {
		if errors.Is(err, ErrInvalidDefinition) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return doc, nil
}

func normalizeEvaluator(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	if evaluator, ok := payload["evaluator"].(string); ok {
		payload["evaluator"] = strings.ToLower(strings.TrimSpace(evaluator))
	}
	return payload, nil
}

// Validate checks keys are present and unique per kind.
func (d Document) Validate() error {
	seen := map[string]struct{}{}
	for i, feature := range d.Features {
		if feature.Key == "" {
			return fmt.Errorf("%w: feature %d has no key", ErrInvalidDefinition, i)
		}
		if _, dup := seen[feature.Key]; dup {
			return fmt.Errorf("%w: duplicate feature %q", ErrInvalidDefinition, feature.Key)
		}
		seen[feature.Key] = struct{}{}
	}
	seen = map[string]struct{}{}
	for i, experiment := range d.Experiments {
		if experiment.Key == "" {
			return fmt.Errorf("%w: experiment %d has no key", ErrInvalidDefinition, i)
		}
		if _, dup := seen[experiment.Key]; dup {
			return fmt.Errorf("%w: duplicate experiment %q", ErrInvalidDefinition, experiment.Key)
		}
		seen[experiment.Key] = struct{}{}
		for j, variation := range experiment.Variations {
			if variation.Key == "" {
				return fmt.Errorf("%w: experiment %q variation %d has no key", ErrInvalidDefinition, experiment.Key, j)
			}
		}
	}
	return nil
}

type compiledFeature struct {
	enabled bool
	rule    rules.CompiledRule
}

type compiledVariation struct {
	key  string
	rule rules.CompiledRule
}

type compiledExperiment struct {
	audience   rules.CompiledRule
	variations []compiledVariation
}

func compileRule(evaluator rules.Evaluator, expression string) (rules.CompiledRule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	return evaluator.Compile(expression)
}
