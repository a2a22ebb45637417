package strategy

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/common/validation"
	"github.com/vnykmshr/pipex/pkg/diagnostics"
	"github.com/vnykmshr/pipex/pkg/metrics"
)

// Key identifies a registered strategy: either by name (a stage name or a
// custom strategy name) or by the success and failure types of a stage.
type Key struct {
	name    string
	success reflect.Type
	failure reflect.Type
}

// NameKey returns the key for a stage or strategy name.
func NameKey(name string) Key {
	return Key{name: name}
}

// TypeKey returns the key for stages producing outcome.Outcome[T, E].
func TypeKey[T, E any]() Key {
	return TypePairKey(reflect.TypeFor[T](), reflect.TypeFor[E]())
}

// TypePairKey returns the key for the given success and failure types.
func TypePairKey(success, failure reflect.Type) Key {
	return Key{success: success, failure: failure}
}

// IsZero reports whether k identifies nothing.
func (k Key) IsZero() bool {
	return k.name == "" && k.success == nil && k.failure == nil
}

func (k Key) String() string {
	if k.name != "" {
		return "name:" + k.name
	}
	return fmt.Sprintf("types:(%v, %v)", k.success, k.failure)
}

// Config holds registry configuration.
type Config struct {
	// Sink receives failure records from the LogAndIgnore built-in.
	// If nil, records are logged to stderr through Logger.
	Sink diagnostics.Sink

	// Logger reports sink errors. If nil, a stderr logger is used.
	Logger *zerolog.Logger

	// Metrics counts records written to the sink. Nil disables counting.
	Metrics *metrics.Registry
}

// Registry maps keys to strategies. Reads are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]Strategy
	sink    diagnostics.Sink
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// NewRegistry creates an empty registry with default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(Config{})
}

// NewRegistryWithConfig creates an empty registry with the given configuration.
func NewRegistryWithConfig(config Config) *Registry {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	r := &Registry{
		entries: make(map[Key]Strategy),
		logger:  logger,
		metrics: config.Metrics,
	}

	sink := config.Sink
	if sink == nil {
		sink = diagnostics.NewLogSink(logger)
	}
	r.sink = r.instrument(sink)
	return r
}

// Register inserts or replaces the strategy for key. Last writer wins.
func (r *Registry) Register(key Key, s Strategy) error {
	if key.IsZero() {
		return gferrors.NewValidationError("strategy", "key", key.String(), "cannot be empty")
	}
	if err := validation.ValidateNotNil("strategy", "strategy", s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = s
	return nil
}

// MustRegister is like Register but panics on invalid input. It is meant for
// setup code.
func (r *Registry) MustRegister(key Key, s Strategy) {
	if err := r.Register(key, s); err != nil {
		panic(err)
	}
}

// Unregister removes the strategy for key and reports whether one existed.
func (r *Registry) Unregister(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	delete(r.entries, key)
	return ok
}

// Resolve returns the strategy registered under key.
func (r *Registry) Resolve(key Key) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", gferrors.ErrUnregisteredStrategy, key)
	}
	return s, nil
}

// Lookup resolves a strategy by name: built-ins first, then strategies
// registered under NameKey(name).
func (r *Registry) Lookup(name string) (Strategy, error) {
	if s, ok := r.Builtin(name); ok {
		return s, nil
	}
	return r.Resolve(NameKey(name))
}

// Builtin returns the built-in strategy with the given name.
func (r *Registry) Builtin(name string) (Strategy, bool) {
	switch name {
	case NameIgnore:
		return Ignore(), true
	case NameCollect:
		return Collect(), true
	case NameFailFast:
		return FailFast(), true
	case NameLogAndIgnore:
		return LogAndIgnore(r.Sink(), r.reportSinkError), true
	case NameFirstError:
		return FirstError(), true
	case NameAutoFilter:
		return AutoFilter(), true
	}
	return nil, false
}

// IsBuiltin reports whether name refers to a built-in strategy.
func IsBuiltin(name string) bool {
	switch name {
	case NameIgnore, NameCollect, NameFailFast, NameLogAndIgnore, NameFirstError, NameAutoFilter:
		return true
	}
	return false
}

// SetSink replaces the sink used by the LogAndIgnore built-in.
func (r *Registry) SetSink(sink diagnostics.Sink) {
	if sink == nil {
		sink = diagnostics.Nop()
	}
	sink = r.instrument(sink)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Registry) instrument(sink diagnostics.Sink) diagnostics.Sink {
	if r.metrics == nil {
		return sink
	}
	return diagnostics.WithMetrics(sink, "", r.metrics)
}

// Sink returns the sink used by the LogAndIgnore built-in.
func (r *Registry) Sink() diagnostics.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sink
}

// Keys returns the registered keys, sorted by their string form.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) reportSinkError(err error) {
	r.logger.Debug().Err(err).Msg("diagnostics sink write failed")
}
