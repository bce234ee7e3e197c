package seals

import (
	"fmt"
	"log"
	"sync"
)

// Registry maps behavior keys to prototypes. It is built once at startup and
// passed to whatever needs to reconstruct seals.
type Registry struct {
	mu     sync.RWMutex
	protos map[string]Behavior
	order  []string
	logger *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{protos: map[string]Behavior{}, logger: discardLogger(logger)}
}

// Register adds a prototype. A duplicate key is rejected and logged.
func (r *Registry) Register(proto Behavior) error {
	key := proto.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrBadConfig)
	}
	if _, ok := r.protos[key]; ok {
		r.logger.Printf("registry: duplicate behavior type %q ignored", key)
		return fmt.Errorf("%w: %s", ErrDuplicateType, key)
	}
	r.protos[key] = proto
	r.order = append(r.order, key)
	return nil
}

func (r *Registry) Lookup(key string) (Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.protos[key]
	return b, ok
}

// New returns a fresh behavior instance for key.
func (r *Registry) New(key string) (Behavior, error) {
	proto, ok := r.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, key)
	}
	return proto.New(), nil
}

// Keys lists registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
