package handler

import "github.com/dmitrymomot/dispatchkit/schema"

// Kind is the declared type of a handler parameter.
type Kind uint8

const (
	// KindAny leaves the value as received.
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindUUID
	// KindBackgroundTask parameters receive a fresh *background.Task.
	KindBackgroundTask
	// KindUploadFile parameters receive a *request.UploadFile from a multipart body.
	KindUploadFile
)

var kindNames = map[Kind]string{
	KindAny:            "any",
	KindString:         "str",
	KindInt:            "int",
	KindFloat:          "float",
	KindBool:           "bool",
	KindUUID:           "uuid",
	KindBackgroundTask: "BackgroundTask",
	KindUploadFile:     "UploadFile",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind resolves a type name such as "int" or "UploadFile".
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	switch name {
	case "":
		return KindAny, true
	case "string":
		return KindString, true
	case "integer":
		return KindInt, true
	case "number":
		return KindFloat, true
	case "boolean":
		return KindBool, true
	}
	return KindAny, false
}

// Param declares one handler parameter.
type Param struct {
	Name string
	Kind Kind
	// Model is the body schema; only meaningful for the parameter named "body".
	Model schema.Model
	// Default is used when nothing binds the parameter. A *Dependency default
	// marks the parameter as injected.
	Default any
}

// P declares a parameter of the given kind.
func P(name string, kind Kind) Param { return Param{Name: name, Kind: kind} }

// Optional returns a copy of p with a default value.
func (p Param) Optional(def any) Param {
	p.Default = def
	return p
}

// Body declares the "body" parameter, validated against model when non-nil.
func Body(model schema.Model) Param { return Param{Name: "body", Model: model} }

// Request declares the "request" parameter.
func Request() Param { return Param{Name: "request"} }

// Task declares a background task parameter.
func Task(name string) Param { return Param{Name: name, Kind: KindBackgroundTask} }

// Upload declares an uploaded file parameter.
func Upload(name string) Param { return Param{Name: name, Kind: KindUploadFile} }

// Dep declares a parameter filled by the dependency resolver.
func Dep(name string, d *Dependency) Param { return Param{Name: name, Default: d} }
