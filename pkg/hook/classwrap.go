package hook

import "sync"

// ClassExport represents a class defined in an instrumented module, with
// its own directly-defined methods (inherited methods are out of scope;
// only the class's *own* methods become wrapped).
//
// Method resolution happens lazily, at first access per call site rather
// than eagerly at class construction, to avoid corrupting class identity
// or descriptor semantics in hosts that have such a protocol. Go has no
// descriptor protocol to corrupt, but the lazy-resolution discipline is
// kept faithfully: a method is only wrapped the first time Method is
// called for it, and the resulting proxy is cached so every subsequent
// access (including from a different instance of the same class) returns
// the identical proxy.
type ClassExport struct {
	Module  ModuleId
	Name    string
	factory *WrapperFactory

	mu      sync.Mutex
	raw     map[string]Callable
	wrapped map[string]*WrappedCallable
}

// NewClassExport describes a class export with its raw, unwrapped methods.
func NewClassExport(factory *WrapperFactory, module ModuleId, name string, methods map[string]Callable) *ClassExport {
	return &ClassExport{
		Module:  module,
		Name:    name,
		factory: factory,
		raw:     methods,
		wrapped: make(map[string]*WrappedCallable),
	}
}

// Method returns the wrapped proxy for the named method, lazily wrapping
// it on first access and reusing the same proxy thereafter. The bool
// result is false if the class defines no such method.
func (c *ClassExport) Method(name string) (*WrappedCallable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wc, ok := c.wrapped[name]; ok {
		return wc, true
	}
	raw, ok := c.raw[name]
	if !ok {
		return nil, false
	}
	qualified := c.Name + "." + name
	wc, err := c.factory.Wrap(c.Module, qualified, raw)
	if err != nil {
		c.factory.engine.diag.wrapFault(c.Module, qualified, err)
		return nil, false
	}
	c.wrapped[name] = wc
	return wc, true
}

// Methods returns the names of the class's own directly-defined methods.
func (c *ClassExport) Methods() []string {
	names := make([]string, 0, len(c.raw))
	for n := range c.raw {
		names = append(names, n)
	}
	return names
}
