// Package di provides a minimal service registry used for module wiring.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry provides read access to registered services.
type ServiceRegistry interface {
	// Get returns the service registered under token, building it lazily on
	// first access. Panics if the token was never registered.
	Get(token string) any
}

// Container extends ServiceRegistry with registration.
type Container interface {
	ServiceRegistry
	// Register stores an already-built service under token.
	Register(token string, service any)
	// RegisterFactory stores a constructor invoked once on first Get.
	RegisterFactory(token string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	services  map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty Container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(token string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[token] = service
}

func (c *container) RegisterFactory(token string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[token] = factory
}

func (c *container) Get(token string) any {
	c.mu.Lock()
	if svc, ok := c.services[token]; ok {
		c.mu.Unlock()
		return svc
	}
	factory, ok := c.factories[token]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: unknown service token %q", token))
	}
	delete(c.factories, token)
	c.mu.Unlock()

	// Build outside the lock so factories can resolve their own dependencies.
	svc := factory(c)

	c.mu.Lock()
	c.services[token] = svc
	c.mu.Unlock()
	return svc
}

// Token is a typed service key.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token with a unique name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registry key.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory under token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken returns the service under token asserted to T.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	svc, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return svc
}
