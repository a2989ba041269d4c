package hook

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"weak"
)

// Callable is a host-language function or method reachable from a module
// export: synchronous, returning a single result or error.
type Callable func(args []any, kwargs map[string]any) (any, error)

// SuspendingCallable is the awaitable variant: a callable whose
// completion the host's scheduler may suspend on.
type SuspendingCallable func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// WrappedCallable is the proxy standing in for an original callable: it
// carries an opaque back-reference to the original (used to detect
// "already wrapped"), the owning ModuleId, and a flag distinguishing
// suspending from direct callables.
type WrappedCallable struct {
	Module     ModuleId
	Name       string
	Suspending bool

	original any
	sync     Callable
	async    SuspendingCallable
}

// Original returns the back-reference to the wrapped callable.
func (w *WrappedCallable) Original() any { return w.original }

// Call invokes the synchronous proxy. Panics if Suspending is true.
func (w *WrappedCallable) Call(args []any, kwargs map[string]any) (any, error) {
	if w.Suspending {
		panic("hook: Call on a suspending WrappedCallable; use CallAsync")
	}
	return w.sync(args, kwargs)
}

// CallAsync invokes the suspending proxy. Panics if Suspending is false.
func (w *WrappedCallable) CallAsync(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if !w.Suspending {
		panic("hook: CallAsync on a direct WrappedCallable; use Call")
	}
	return w.async(ctx, args, kwargs)
}

// WrapperFactory is the wrapper factory: given an original callable it
// returns a proxy emitting on_call/on_return around an invocation,
// memoized so wrapping the same callable twice returns the same proxy
// and so a collected original frees its proxy.
//
// Built around a weak map from originals to wrappers, implemented with
// the standard library's weak.Pointer (Go 1.24+) rather than a
// third-party cache (see DESIGN.md).
type WrapperFactory struct {
	engine *Engine

	mu    sync.Mutex
	cache map[uintptr]weak.Pointer[WrappedCallable]
}

// NewWrapperFactory builds a WrapperFactory that emits events through engine.
func NewWrapperFactory(engine *Engine) *WrapperFactory {
	return &WrapperFactory{
		engine: engine,
		cache:  make(map[uintptr]weak.Pointer[WrappedCallable]),
	}
}

// Wrap wraps original (a Callable or SuspendingCallable) for module/name.
// Already-wrapped values (a *WrappedCallable) are returned unchanged.
// Anything else, including primitives and module objects, is returned as
// an error and left unwrapped; the import interceptor passes every
// non-dunder export here and relies on that error to skip non-callables.
func (f *WrapperFactory) Wrap(module ModuleId, name string, original any) (*WrappedCallable, error) {
	if wc, ok := original.(*WrappedCallable); ok {
		return wc, nil
	}

	switch fn := original.(type) {
	case Callable:
		return f.wrapSync(module, name, fn)
	case SuspendingCallable:
		return f.wrapAsync(module, name, fn)
	default:
		return nil, fmt.Errorf("hook: %s.%s is not a wrappable callable (%T)", module, name, original)
	}
}

func (f *WrapperFactory) wrapSync(module ModuleId, name string, fn Callable) (*WrappedCallable, error) {
	key := funcIdentity(fn)
	if wc := f.lookup(key); wc != nil {
		return wc, nil
	}

	wc := &WrappedCallable{Module: module, Name: name, original: fn}
	wc.sync = func(args []any, kwargs map[string]any) (any, error) {
		if err := f.emitCall(module, name, args, kwargs); err != nil {
			return nil, err
		}
		result, err := fn(args, kwargs)
		if err != nil {
			return result, err
		}
		f.emitReturn(module, name, result)
		return result, nil
	}
	f.store(key, wc)
	return wc, nil
}

func (f *WrapperFactory) wrapAsync(module ModuleId, name string, fn SuspendingCallable) (*WrappedCallable, error) {
	key := funcIdentity(fn)
	if wc := f.lookup(key); wc != nil {
		return wc, nil
	}

	wc := &WrappedCallable{Module: module, Name: name, Suspending: true, original: fn}
	wc.async = func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		if err := f.emitCall(module, name, args, kwargs); err != nil {
			return nil, err
		}
		result, err := fn(ctx, args, kwargs)
		if err != nil {
			// No on_return for a cancelled or errored suspending
			// invocation.
			return result, err
		}
		f.emitReturn(module, name, result)
		return result, nil
	}
	f.store(key, wc)
	return wc, nil
}

// emitCall/emitReturn implement the reentrancy-aware entry/exit notify:
// only notify if the calling goroutine's reentrancy flag is clear when
// entering; always balance with the matching exit check.
func (f *WrapperFactory) emitCall(module ModuleId, name string, args []any, kwargs map[string]any) error {
	return f.engine.OnCall(module, name, args, kwargs)
}

func (f *WrapperFactory) emitReturn(module ModuleId, name string, result any) {
	f.engine.OnReturn(module, name, result)
}

func (f *WrapperFactory) lookup(key uintptr) *WrappedCallable {
	f.mu.Lock()
	wp, ok := f.cache[key]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

func (f *WrapperFactory) store(key uintptr, wc *WrappedCallable) {
	f.mu.Lock()
	f.cache[key] = weak.Make(wc)
	f.mu.Unlock()
	runtime.AddCleanup(wc, f.evict, key)
}

func (f *WrapperFactory) evict(key uintptr) {
	f.mu.Lock()
	if wp, ok := f.cache[key]; ok && wp.Value() == nil {
		delete(f.cache, key)
	}
	f.mu.Unlock()
}

// funcIdentity returns a stable identity for a func value, used only as a
// cache key. Go func values aren't comparable, so the entry point address
// (reflect.Value.Pointer) stands in for identity, sufficient for the
// common case of re-wrapping the very same bound method or function
// literal the host hands back on repeated attribute access.
func funcIdentity(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
