// Package engine runs rules actions against the record store.
//
// Each action loads the records it needs, hands plain values to the pure
// resolvers in internal/combat and internal/core, and applies the returned
// mutation batch through the store. Actions run to completion before they
// return; the only state kept between calls is the opposed-test registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/platform/otel"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/dicecore/internal/engine"

// Sheet names the engine reads when a request leaves them empty.
const (
	PainAttribute    = "willpower"
	PainSkill        = "pain_resistance"
	HealingAttribute = "intellect"
	HealingSkill     = "medicine"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the action logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for action spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithSource sets the die source.
func WithSource(src dice.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.source = src
		}
	}
}

// WithSettings replaces the default rules settings.
func WithSettings(settings rules.Settings) Option {
	return func(e *Engine) { e.settings = settings }
}

// WithRegistry shares an opposed-test registry between engines.
func WithRegistry(registry *opposed.Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.sessions = registry
		}
	}
}

// Engine is the action facade.
type Engine struct {
	store    storage.Store
	settings rules.Settings
	source   dice.Source
	logger   zerolog.Logger
	tracer   trace.Tracer
	sessions *opposed.Registry
	weapons  keyedMutex
}

// New builds an engine over store. Without options it uses the default
// rules, a crypto-seeded die source and a no-op logger.
func New(store storage.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	e := &Engine{
		store:    store,
		settings: rules.Default(),
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.source == nil {
		src, err := dice.NewRandomSource()
		if err != nil {
			return nil, err
		}
		e.source = src
	}
	if e.sessions == nil {
		e.sessions = opposed.NewRegistry()
	}
	if err := e.settings.Validate(); err != nil {
		return nil, classify(err)
	}
	return e, nil
}

// Settings returns the rules the engine resolves with.
func (e *Engine) Settings() rules.Settings {
	return e.settings
}

func (e *Engine) start(ctx context.Context, action string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("dicecore.action", action))
	return e.tracer.Start(ctx, "engine."+action, trace.WithAttributes(attrs...))
}

// fail classifies err, records it on span and logs it. Resource exhaustion
// is a user-facing warning; anything else is logged at error level only when
// it carries no domain code.
func (e *Engine) fail(span trace.Span, action string, err error) error {
	err = classify(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	event := e.logger.Debug()
	switch code := codeOf(err); {
	case isResourceExhausted(code):
		event = e.logger.Warn()
	case code == "":
		event = e.logger.Error()
	}
	event.Str("action", action).Err(err).Msg("action failed")
	return err
}

func (e *Engine) stats(c storage.Character, attributeName, skillName string) (int, int, error) {
	attr, ok := c.Attribute(strings.TrimSpace(attributeName))
	if !ok {
		return 0, 0, missingReference("attribute", attributeName)
	}
	return attr, c.Skill(strings.TrimSpace(skillName)), nil
}

func (e *Engine) character(ctx context.Context, characterID string) (storage.Character, error) {
	if strings.TrimSpace(characterID) == "" {
		return storage.Character{}, missingReference("character", characterID)
	}
	return e.store.GetCharacter(ctx, characterID)
}

func (e *Engine) apply(ctx context.Context, mutations []storage.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	if err := e.store.Apply(ctx, mutations); err != nil {
		return fmt.Errorf("apply mutations: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
