// Package transform runs user-authored derivation snippets from mapping
// files.
//
// Snippets come from shared mapping files and are treated as untrusted.
// [GojaRuntime] evaluates each one in a fresh JavaScript VM that exposes
// only the matched value, a copy of the document root and a set of pure
// helpers: there is no require, no I/O, no clock and no random source, and
// every run is interrupted after a timeout. [Apply] selects the nodes a
// rule targets and isolates failures per invocation so one broken snippet
// never aborts a conversion.
package transform

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// DefaultTimeout bounds a single snippet run.
const DefaultTimeout = 250 * time.Millisecond

// ErrTimeout is returned when a snippet exceeds its time budget.
var ErrTimeout = stderrors.New("transform timed out")

// Context is what a snippet sees. Value and Root are plain Go values
// (maps, slices, scalars) and are copied into the VM.
type Context struct {
	Value   any
	Root    any
	Path    yamlcst.Path
	Helpers Helpers
}

// Runtime executes snippet code. Implementations must not give snippets
// access to host resources and must return the same result for the same
// inputs.
type Runtime interface {
	Run(ctx context.Context, code string, tc Context) (any, error)
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, code string, tc Context) (any, error)

// Run calls f.
func (f RuntimeFunc) Run(ctx context.Context, code string, tc Context) (any, error) {
	return f(ctx, code, tc)
}

// GojaRuntime runs snippets with value, root, path and helpers in scope. A
// snippet is either a single expression or a JavaScript function body.
type GojaRuntime struct {
	Timeout time.Duration
}

// NewGojaRuntime returns a runtime with the given timeout, or DefaultTimeout
// when timeout is not positive.
func NewGojaRuntime(timeout time.Duration) *GojaRuntime {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GojaRuntime{Timeout: timeout}
}

// Compile turns snippet code into a program that invokes it as a function
// of value, root, path and helpers. Code is first tried as a single
// expression, so "return" inside a nested function or a string does not
// matter; code that is not an expression is compiled as a function body.
func Compile(code string) (*goja.Program, error) {
	body := strings.TrimSpace(code)
	expr := "return (" + strings.TrimRight(body, "; \n\t") + "\n);"
	if p, err := goja.Compile("transform", wrap(expr), true); err == nil {
		return p, nil
	}
	p, err := goja.Compile("transform", wrap(body), true)
	if err != nil {
		return nil, fmt.Errorf("compile transform: %w", err)
	}
	return p, nil
}

func wrap(body string) string {
	return "(function (value, root, path, helpers) {\n" + body + "\n})(value, root, path, helpers)"
}

// Run implements Runtime.
func (r *GojaRuntime) Run(ctx context.Context, code string, tc Context) (result any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, err := Compile(code)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	if err := sandbox(vm); err != nil {
		return nil, err
	}

	helpers := tc.Helpers
	if helpers == nil {
		helpers = DefaultHelpers()
	}
	for name, v := range map[string]any{
		"value":   tc.Value,
		"root":    tc.Root,
		"path":    tc.Path.String(),
		"helpers": map[string]any(helpers),
	} {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() { vm.Interrupt(ErrTimeout) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("transform panicked: %v", p)
		}
	}()

	v, err := vm.RunProgram(prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if stderrors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transform failed: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// sandbox removes the nondeterministic parts of the standard library.
func sandbox(vm *goja.Runtime) error {
	global := vm.GlobalObject()
	for _, name := range []string{"Date", "WeakRef", "FinalizationRegistry"} {
		if err := global.Delete(name); err != nil {
			return fmt.Errorf("sandbox: %w", err)
		}
	}
	if m := global.Get("Math"); m != nil {
		if err := m.ToObject(vm).Delete("random"); err != nil {
			return fmt.Errorf("sandbox: %w", err)
		}
	}
	return nil
}
