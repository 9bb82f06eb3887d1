package luahost

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	pathpkg "path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/schema"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

// Manifest declares which Lua functions serve which routes.
//
//	scripts: [app.lua]
//	routes:
//	  - method: GET
//	    path: /items/{id}
//	    handler: get_item
//	    params:
//	      - {name: id, type: int}
//	      - {name: q, type: str, default: ""}
//	      - {name: user, depends: current_user}
//	websockets:
//	  - {path: /ws/chat, handler: chat, async: true}
//	not_found: missing
//	startup: [warm_cache]
//	shutdown: [flush]
type Manifest struct {
	Scripts    []string        `yaml:"scripts"`
	Routes     []RouteSpec     `yaml:"routes"`
	WebSockets []WebSocketSpec `yaml:"websockets"`
	NotFound   string          `yaml:"not_found"`
	Startup    []string        `yaml:"startup"`
	Shutdown   []string        `yaml:"shutdown"`

	// dir resolves relative script paths, inside fsys when it is set.
	dir  string
	fsys fs.FS
}

// RouteSpec binds one route to a Lua function.
type RouteSpec struct {
	Method  string      `yaml:"method"`
	Path    string      `yaml:"path"`
	Handler string      `yaml:"handler"`
	Async   bool        `yaml:"async"`
	Params  []ParamSpec `yaml:"params"`
}

// ParamSpec declares a handler parameter. Type is a kind name such as "int"
// or "UploadFile"; "request" and "body" are recognized by name.
type ParamSpec struct {
	Name    string      `yaml:"name"`
	Type    string      `yaml:"type"`
	Default any         `yaml:"default"`
	Depends string      `yaml:"depends"`
	Fields  []FieldSpec `yaml:"fields"`
}

// FieldSpec declares one field of a body schema.
type FieldSpec struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Optional bool        `yaml:"optional"`
	Default  any         `yaml:"default"`
	Min      *float64    `yaml:"min"`
	Max      *float64    `yaml:"max"`
	MinLen   *int        `yaml:"min_len"`
	MaxLen   *int        `yaml:"max_len"`
	Pattern  string      `yaml:"pattern"`
	OneOf    []any       `yaml:"one_of"`
	Fields   []FieldSpec `yaml:"fields"`
	Items    *FieldSpec  `yaml:"items"`
}

// WebSocketSpec binds a websocket route to a Lua function.
type WebSocketSpec struct {
	Path    string `yaml:"path"`
	Handler string `yaml:"handler"`
	Async   bool   `yaml:"async"`
}

// Registrar receives the handlers built from a manifest. *server.Server
// satisfies it.
type Registrar interface {
	AddRoute(method, pattern string, h handler.Handler) error
	WebSocket(pattern string, h websocket.Handler) error
}

type notFoundRegistrar interface {
	NotFound(h handler.Handler) error
}

type hookRegistrar interface {
	OnStartup(h handler.Handler) error
	OnShutdown(h handler.Handler) error
}

type exclusiveOwner interface {
	Exclusive() *bridge.Exclusive
}

// ParseManifest decodes a manifest. Relative script paths resolve against dir.
func ParseManifest(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	m.dir = dir
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and decodes the manifest file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// LoadManifestFS reads the manifest at name from fsys. Its scripts are read
// from fsys too, which suits manifests embedded with go:embed.
func LoadManifestFS(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	m, err := ParseManifest(data, pathpkg.Dir(name))
	if err != nil {
		return nil, err
	}
	m.fsys = fsys
	return m, nil
}

func (m *Manifest) validate() error {
	for i, r := range m.Routes {
		if r.Path == "" || r.Handler == "" {
			return fmt.Errorf("%w: route %d needs path and handler", ErrManifest, i)
		}
		if r.Method == "" {
			m.Routes[i].Method = "GET"
		}
		m.Routes[i].Method = strings.ToUpper(m.Routes[i].Method)
	}
	for i, ws := range m.WebSockets {
		if ws.Path == "" || ws.Handler == "" {
			return fmt.Errorf("%w: websocket %d needs path and handler", ErrManifest, i)
		}
	}
	return nil
}

// Register loads the manifest's scripts into h and registers every declared
// handler with r. When r exposes its exclusive region it must be h's.
func (m *Manifest) Register(ctx context.Context, h *Host, r Registrar) error {
	if owner, ok := r.(exclusiveOwner); ok && owner.Exclusive() != h.Exclusive() {
		return fmt.Errorf("%w: registrar does not share the host's exclusive region", ErrManifest)
	}

	for _, script := range m.Scripts {
		if err := m.load(ctx, h, script); err != nil {
			return fmt.Errorf("load %s: %w", script, err)
		}
	}

	for _, rs := range m.Routes {
		params, err := h.params(rs.Params)
		if err != nil {
			return fmt.Errorf("route %s %s: %w", rs.Method, rs.Path, err)
		}
		hd, err := h.Handler(rs.Handler, params, rs.Async)
		if err != nil {
			return fmt.Errorf("route %s %s: %w", rs.Method, rs.Path, err)
		}
		if err := r.AddRoute(rs.Method, rs.Path, hd); err != nil {
			return err
		}
	}

	for _, ws := range m.WebSockets {
		wh, err := h.WebSocketHandler(ws.Handler, ws.Async)
		if err != nil {
			return fmt.Errorf("websocket %s: %w", ws.Path, err)
		}
		if err := r.WebSocket(ws.Path, wh); err != nil {
			return err
		}
	}

	if m.NotFound != "" {
		nf, ok := r.(notFoundRegistrar)
		if !ok {
			return fmt.Errorf("%w: registrar does not accept a not-found handler", ErrManifest)
		}
		hd, err := h.Handler(m.NotFound, []handler.Param{handler.P("path", handler.KindString), handler.Request()}, false)
		if err != nil {
			return fmt.Errorf("not_found: %w", err)
		}
		if err := nf.NotFound(hd); err != nil {
			return err
		}
	}

	if len(m.Startup) == 0 && len(m.Shutdown) == 0 {
		return nil
	}
	hooks, ok := r.(hookRegistrar)
	if !ok {
		return fmt.Errorf("%w: registrar does not accept lifecycle hooks", ErrManifest)
	}
	for _, name := range m.Startup {
		hd, err := h.Handler(name, nil, false)
		if err != nil {
			return fmt.Errorf("startup: %w", err)
		}
		if err := hooks.OnStartup(hd); err != nil {
			return err
		}
	}
	for _, name := range m.Shutdown {
		hd, err := h.Handler(name, nil, false)
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := hooks.OnShutdown(hd); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) load(ctx context.Context, h *Host, script string) error {
	if m.fsys != nil {
		src, err := fs.ReadFile(m.fsys, pathpkg.Join(m.dir, script))
		if err != nil {
			return err
		}
		return h.DoString(ctx, string(src))
	}
	name := script
	if !filepath.IsAbs(name) && m.dir != "" {
		name = filepath.Join(m.dir, name)
	}
	return h.DoFile(ctx, name)
}

// params builds the parameter table of one route. Providers named by several
// parameters share one Dependency, so they run once per request. A route with
// dependencies also takes the request, so providers always see the request
// table.
func (h *Host) params(specs []ParamSpec) ([]handler.Param, error) {
	deps := map[string]*handler.Dependency{}
	out := make([]handler.Param, 0, len(specs)+1)
	hasRequest := false
	for _, ps := range specs {
		switch {
		case ps.Depends != "":
			d, ok := deps[ps.Depends]
			if !ok {
				p, err := h.Provider(ps.Depends)
				if err != nil {
					return nil, err
				}
				d = handler.Depends(p)
				deps[ps.Depends] = d
			}
			out = append(out, handler.Dep(ps.Name, d))
		case ps.Name == "request":
			hasRequest = true
			out = append(out, handler.Request())
		case ps.Name == "body" && len(ps.Fields) > 0:
			fields, err := buildFields(ps.Fields)
			if err != nil {
				return nil, err
			}
			out = append(out, handler.Body(schema.NewObject("Body", fields...)))
		default:
			kind, ok := handler.ParseKind(ps.Type)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q has unknown type %q", ErrManifest, ps.Name, ps.Type)
			}
			p := handler.P(ps.Name, kind)
			if ps.Default != nil {
				p = p.Optional(ps.Default)
			}
			out = append(out, p)
		}
	}
	if len(deps) > 0 && !hasRequest {
		out = append(out, handler.Request())
	}
	return out, nil
}

func buildFields(specs []FieldSpec) ([]schema.Field, error) {
	out := make([]schema.Field, 0, len(specs))
	for _, fs := range specs {
		f, err := buildField(fs)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func buildField(fs FieldSpec) (schema.Field, error) {
	rules, err := fieldRules(fs)
	if err != nil {
		return schema.Field{}, err
	}

	var f schema.Field
	switch fs.Type {
	case "str", "string":
		f = schema.String(fs.Name, rules...)
	case "int", "integer":
		f = schema.Int(fs.Name, rules...)
	case "float", "number":
		f = schema.Float(fs.Name, rules...)
	case "bool", "boolean":
		f = schema.Bool(fs.Name, rules...)
	case "", "any":
		f = schema.Any(fs.Name, rules...)
	case "list":
		item := schema.Any("item")
		if fs.Items != nil {
			if item, err = buildField(*fs.Items); err != nil {
				return schema.Field{}, err
			}
		}
		f = schema.List(fs.Name, item, rules...)
	case "object":
		nested, err := buildFields(fs.Fields)
		if err != nil {
			return schema.Field{}, err
		}
		f = schema.Nested(fs.Name, schema.NewObject(fs.Name, nested...), rules...)
	default:
		return schema.Field{}, fmt.Errorf("%w: field %q has unknown type %q", ErrManifest, fs.Name, fs.Type)
	}
	if fs.Optional || fs.Default != nil {
		f = f.Optional(fs.Default)
	}
	return f, nil
}

func fieldRules(fs FieldSpec) ([]schema.Rule, error) {
	var rules []schema.Rule
	if fs.Min != nil {
		rules = append(rules, schema.Min(*fs.Min))
	}
	if fs.Max != nil {
		rules = append(rules, schema.Max(*fs.Max))
	}
	if fs.MinLen != nil {
		rules = append(rules, schema.MinLen(*fs.MinLen))
	}
	if fs.MaxLen != nil {
		rules = append(rules, schema.MaxLen(*fs.MaxLen))
	}
	if fs.Pattern != "" {
		if _, err := regexp.Compile(fs.Pattern); err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrManifest, fs.Name, err)
		}
		rules = append(rules, schema.Pattern(fs.Pattern))
	}
	if len(fs.OneOf) > 0 {
		values := make([]any, len(fs.OneOf))
		for i, v := range fs.OneOf {
			if n, ok := v.(int); ok {
				values[i] = int64(n)
			} else {
				values[i] = v
			}
		}
		rules = append(rules, schema.OneOf(values...))
	}
	return rules, nil
}
