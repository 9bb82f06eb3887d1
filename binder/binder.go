package binder

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/signature"
)

// Input is everything binding may draw from. Nil fields are skipped.
type Input struct {
	PathParams  map[string]string
	Query       map[string]string
	ContentType string
	Body        []byte
	Form        *request.Form
	Request     *request.Context
}

// Result holds the bound arguments and the background task, if a parameter
// asked for one.
type Result struct {
	Args handler.Args
	Task *background.Task
}

// Bind derives the arguments for sig from in.
func Bind(ctx context.Context, sig *signature.Signature, in Input) (*Result, error) {
	args := make(handler.Args, len(sig.Names)+len(in.PathParams))
	res := &Result{Args: args}

	for name, raw := range in.PathParams {
		kind, typed := sig.Types[name]
		if !typed {
			args[name] = raw
			continue
		}
		v, err := Coerce(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q as %s: %w", ErrCoercion, name, kind, err)
		}
		args[name] = v
	}

	if sig.HasDepends && sig.Resolver != nil {
		deps, err := sig.Resolver.Resolve(ctx, sig.Handler, in.Request)
		if err != nil {
			return nil, err
		}
		for name, v := range deps {
			setIfUnbound(args, name, v)
		}
	}

	for _, name := range sig.Names {
		if args.Has(name) {
			continue
		}
		switch {
		case name == "request":
			if in.Request != nil {
				args[name] = in.Request
			}
		case sig.Types[name] == handler.KindBackgroundTask:
			if res.Task == nil {
				res.Task = background.New()
			}
			args[name] = res.Task
		case sig.Types[name] == handler.KindUploadFile:
			if in.Form != nil {
				if f, ok := in.Form.Files[name]; ok {
					args[name] = f
				}
			}
		case in.Form != nil:
			if v, ok := in.Form.Fields[name]; ok {
				args[name] = v
			}
		}
	}

	if sig.WantsBody() && !args.Has("body") {
		body, err := bindBody(sig, in)
		if err != nil {
			return nil, err
		}
		args["body"] = body
	}

	for _, name := range sig.Names {
		raw, ok := in.Query[name]
		if !ok || args.Has(name) {
			continue
		}
		args[name] = raw
		if kind, typed := sig.Types[name]; typed {
			if v, err := Coerce(kind, raw); err == nil {
				args[name] = v
			}
		}
	}

	for name, def := range sig.Defaults {
		setIfUnbound(args, name, def)
	}
	return res, nil
}

func setIfUnbound(args handler.Args, name string, v any) {
	if !args.Has(name) {
		args[name] = v
	}
}

// bindBody returns the decoded JSON body (validated when the signature has a
// body schema), the raw text of a non-JSON body, or nil.
func bindBody(sig *signature.Signature, in Input) (any, error) {
	if IsJSON(in.ContentType) {
		if len(in.Body) == 0 {
			return nil, nil
		}
		v, err := jsoncodec.Decode(in.Body)
		if err != nil {
			return nil, nil
		}
		if sig.BodySchema == nil {
			return v, nil
		}
		return sig.BodySchema.Validate(v)
	}
	if in.Body == nil || !utf8.Valid(in.Body) {
		return nil, nil
	}
	return string(in.Body), nil
}

// IsJSON reports whether a Content-Type header denotes JSON.
func IsJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
