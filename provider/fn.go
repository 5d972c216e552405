package provider

import (
	"fmt"
	"reflect"

	"github.com/progrium/objmux-go/frame"
)

// CodeInvalidParams is returned by HandlerFrom handlers when the params do
// not fit the function signature.
const CodeInvalidParams = -32602

var (
	callType  = reflect.TypeOf(&Call{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// HandlerFrom uses reflection to return a handler for a function. The
// request params must be an array, one element per argument, each decoded
// into the argument type the way Payload.Decode does. Missing params are
// treated as an empty array. The function can opt in to receive the Call by
// taking a final *Call argument.
//
// The function can return nothing, which is answered with null, a single
// value, which can be an error, or a value and an error. HandlerFrom panics
// if fn is not a function.
func HandlerFrom(fn any) Handler {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		panic("provider: HandlerFrom needs a func")
	}
	fnt := fnv.Type()
	if fnt.NumOut() > 2 {
		panic("provider: HandlerFrom func returns more than two values")
	}
	wantsCall := fnt.NumIn() > 0 && fnt.In(fnt.NumIn()-1) == callType
	nargs := fnt.NumIn()
	if wantsCall {
		nargs--
	}

	return HandlerFunc(func(r Responder, c *Call) {
		defer func() {
			if p := recover(); p != nil {
				r.Return(fmt.Errorf("panic: %v", p))
			}
		}()

		var params []any
		if err := c.Receive(&params); err != nil {
			r.Return(&Error{Code: CodeInvalidParams, Message: "params must be an array"})
			return
		}
		switch {
		case len(params) > nargs:
			r.Return(&Error{Code: CodeInvalidParams, Message: "too many params"})
			return
		case len(params) < nargs:
			r.Return(&Error{Code: CodeInvalidParams, Message: "too few params"})
			return
		}

		in := make([]reflect.Value, 0, fnt.NumIn())
		for idx, param := range params {
			arg := reflect.New(fnt.In(idx))
			if err := frame.NewPayload(param).Decode(arg.Interface()); err != nil {
				r.Return(&Error{
					Code:    CodeInvalidParams,
					Message: fmt.Sprintf("param %d: %s", idx, err),
				})
				return
			}
			in = append(in, arg.Elem())
		}
		if wantsCall {
			in = append(in, reflect.ValueOf(c))
		}

		r.Return(parseReturn(fnv.Call(in)))
	})
}

// parseReturn turns function results into a value or an error.
func parseReturn(ret []reflect.Value) any {
	var val any
	for _, v := range ret {
		if v.Type().Implements(errorType) {
			if err, ok := v.Interface().(error); ok && err != nil {
				return err
			}
			continue
		}
		val = v.Interface()
	}
	return val
}
