package cabinet

import (
	"context"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

type deferState uint8

const (
	stateUnresolved deferState = iota
	stateResolving
	stateResolved
)

// Thunk is a raw field value computed on first access. It is invoked once with
// the owning record and its result is cast against the field's declared type.
type Thunk func(ctx context.Context, parent *Record) (any, error)

// Deferred is a lazily constructed field value. The builder runs at most once;
// its result (or error) is cached and every later Resolve returns the same
// value.
type Deferred struct {
	path  string
	typ   string
	owner *RecordType
	build func(ctx context.Context) (any, error)

	mu      sync.Mutex
	state   deferState
	done    chan struct{}
	builder uint64 // goroutine running build while resolving
	value   any
	err     error
}

func newDeferred(path, typ string, owner *RecordType, build func(ctx context.Context) (any, error)) *Deferred {
	return &Deferred{path: path, typ: typ, owner: owner, build: build}
}

// Path is the field path the value belongs to.
func (d *Deferred) Path() string { return d.path }

// Type is the declared type of the field.
func (d *Deferred) Type() string { return d.typ }

// Resolved reports whether the value has been built.
func (d *Deferred) Resolved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == stateResolved
}

// resolveFrame links the resolvers that are in flight on the current call
// chain. It travels in the context so reentrancy can be told apart from a
// concurrent first access.
type resolveFrame struct {
	d    *Deferred
	next *resolveFrame
}

type resolvingKey struct{}

func framesFrom(ctx context.Context) *resolveFrame {
	f, _ := ctx.Value(resolvingKey{}).(*resolveFrame)
	return f
}

// Resolve builds the value on first call and returns the cached result after.
// A goroutine arriving while another one builds waits for that build. Calling
// Resolve again from within the build (directly, through other fields or from
// a fresh context such as MarshalJSON on the same goroutine) yields
// ErrResolutionCycle.
func (d *Deferred) Resolve(ctx context.Context) (any, error) {
	d.mu.Lock()
	switch d.state {
	case stateResolved:
		v, err := d.value, d.err
		d.mu.Unlock()
		return v, err
	case stateResolving:
		frames := framesFrom(ctx)
		for f := frames; f != nil; f = f.next {
			if f.d == d {
				d.mu.Unlock()
				return nil, d.cycle(frames)
			}
		}
		if id := goroutineID(); id != 0 && d.builder == id {
			d.mu.Unlock()
			return nil, d.cycle(frames)
		}
		done := d.done
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return d.value, d.err
	}
	d.state = stateResolving
	d.done = make(chan struct{})
	d.builder = goroutineID()
	d.mu.Unlock()

	logger().Debug().Str("path", d.path).Str("type", d.typ).Msg("resolving deferred field")

	var (
		v   any
		err error
	)
	defer func() {
		d.mu.Lock()
		d.builder = 0
		if r := recover(); r != nil {
			d.value, d.err = nil, newIssue(CodeConstruction, d.path, d.typ, nil)
			d.state = stateResolved
			close(d.done)
			d.mu.Unlock()
			panic(r)
		}
		d.value, d.err = v, err
		d.state = stateResolved
		close(d.done)
		d.mu.Unlock()
	}()
	v, err = d.build(context.WithValue(ctx, resolvingKey{}, &resolveFrame{d: d, next: framesFrom(ctx)}))
	return v, err
}

func (d *Deferred) cycle(frames *resolveFrame) error {
	chain := []string{d.path}
	for f := frames; f != nil; f = f.next {
		chain = append(chain, f.d.path)
		if f.d == d {
			break
		}
	}
	// frames are innermost first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	it := newIssue(CodeResolutionCycle, d.path, d.typ, nil)
	it.Message += " (" + strings.Join(chain, " -> ") + ")"
	return it
}

// MarshalJSON forces resolution and inlines the resolved value.
func (d *Deferred) MarshalJSON() ([]byte, error) {
	v, err := d.Resolve(context.Background())
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// force resolves v when it is deferred and returns it unchanged otherwise.
func force(ctx context.Context, v any) (any, error) {
	if d, ok := v.(*Deferred); ok {
		return d.Resolve(ctx)
	}
	return v, nil
}
