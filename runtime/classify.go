package runtime

import (
	"fmt"
	"net/http"
	"reflect"
)

// Handler signature inspection.
//
// A module's handler declares what it is through its parameter list:
//
//	func(s *Scope) error                                      setup plugin
//	func(w http.ResponseWriter, r *http.Request)              request handler
//	func(w http.ResponseWriter, r *http.Request, s *Scope)    request handler
//
// The parameter count is inspected once at load time; there is no dynamic
// dispatch afterwards.

var (
	scopeType  = reflect.TypeOf((*Scope)(nil))
	writerType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	reqType    = reflect.TypeOf((*http.Request)(nil))
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
)

// classifyHandler determines the kind of a handler from its reflected
// signature. Anything that is not a function, or a function of an
// unsupported shape, is rejected.
func classifyHandler(handler any) (HandlerKind, error) {
	if handler == nil {
		return 0, fmt.Errorf("module exports no handler")
	}

	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func {
		return 0, fmt.Errorf("handler is %T, expected a function", handler)
	}

	switch t.NumIn() {
	case 1:
		if t.In(0) != scopeType {
			return 0, fmt.Errorf("setup handler must accept *runtime.Scope, got %s", t.In(0))
		}
		if !validSetupOutputs(t) {
			return 0, fmt.Errorf("setup handler must return nothing or error")
		}
		return KindSetup, nil

	case 2, 3:
		if t.In(0) != writerType || t.In(1) != reqType {
			return 0, fmt.Errorf("request handler must accept (http.ResponseWriter, *http.Request), got (%s, %s)", t.In(0), t.In(1))
		}
		if t.NumIn() == 3 && t.In(2) != scopeType {
			return 0, fmt.Errorf("third request handler parameter must be *runtime.Scope, got %s", t.In(2))
		}
		if t.NumOut() != 0 {
			return 0, fmt.Errorf("request handler must not return values")
		}
		return KindRequest, nil

	default:
		return 0, fmt.Errorf("unsupported handler arity %d", t.NumIn())
	}
}

func validSetupOutputs(t reflect.Type) bool {
	switch t.NumOut() {
	case 0:
		return true
	case 1:
		return t.Out(0) == errorType
	default:
		return false
	}
}

// invokeSetup calls a setup-kind handler with the given scope.
func invokeSetup(handler any, s *Scope) error {
	out := reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(s)})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

// invokeRequest calls a request-kind handler, passing the scope only when
// the handler declared a third parameter.
func invokeRequest(handler any, w http.ResponseWriter, r *http.Request, s *Scope) {
	v := reflect.ValueOf(handler)
	args := []reflect.Value{reflect.ValueOf(w), reflect.ValueOf(r)}
	if v.Type().NumIn() == 3 {
		args = append(args, reflect.ValueOf(s))
	}
	v.Call(args)
}
