package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the payload being decoded in error messages.
type Context struct {
	Source string
}

// PreHook lets callers normalise the generic payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts JSON documents into typed values.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects documents with fields T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode parses data into T applying configured hooks. Pre-hooks only run
// when the document is a JSON object.
func (d *Decoder[T]) Decode(ctx Context, data []byte) (T, error) {
	var zero T

	if len(bytes.TrimSpace(data)) == 0 {
		return zero, fmt.Errorf("hydrate: %s is empty", ctx.Source)
	}

	payload := data
	if len(d.preHooks) > 0 {
		var current map[string]any
		if err := json.Unmarshal(data, &current); err != nil {
			return zero, fmt.Errorf("hydrate: parse %s: %w", ctx.Source, err)
		}
		for _, hook := range d.preHooks {
			if hook == nil {
				continue
			}
			next, err := hook(ctx, current)
			if err != nil {
				return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx.Source, err)
			}
			if next != nil {
				current = next
			}
		}
		buffer, err := json.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal %s: %w", ctx.Source, err)
		}
		payload = buffer
	}

	var result T
	decoder := json.NewDecoder(bytes.NewReader(payload))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.Source, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx.Source, err)
		}
	}

	return result, nil
}
