// Package plugin implements account-scoped capabilities that are offered to
// the model when their selection predicate matches the chat input.
//
// Three kinds exist: static data, API calls and SQL queries. Each kind is
// built from a Definition (usually loaded from configuration) and exposed to
// the tool registry through the tool.Plugin interface.
package plugin

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/tool"
)

// Kind names a plugin implementation.
type Kind string

const (
	KindStatic Kind = "static"
	KindAPI    Kind = "api"
	KindSQL    Kind = "sql"
)

// Handle is a plugin the orchestrator can select and invoke.
type Handle interface {
	tool.Plugin

	// Selected reports whether the plugin applies to this chat turn.
	Selected(user *core.User, input string, messages []core.Message) bool
}

// Definition is the declarative description of a plugin.
type Definition struct {
	ID          int64          `json:"id" yaml:"id" toml:"id"`
	Name        string         `json:"name" yaml:"name" toml:"name"`
	Kind        Kind           `json:"kind" yaml:"kind" toml:"kind"`
	Description string         `json:"description" yaml:"description" toml:"description"`
	SearchTerms []string       `json:"search_terms" yaml:"search_terms" toml:"search_terms"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters,omitempty"`

	// static
	Data any `json:"data,omitempty" yaml:"data,omitempty" toml:"data,omitempty"`

	// api
	Endpoint string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Method   string            `json:"method,omitempty" yaml:"method,omitempty" toml:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`

	// sql
	Query   string `json:"query,omitempty" yaml:"query,omitempty" toml:"query,omitempty"`
	Driver  string `json:"driver,omitempty" yaml:"driver,omitempty" toml:"driver,omitempty"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty" toml:"dsn,omitempty"`
	MaxRows int    `json:"max_rows,omitempty" yaml:"max_rows,omitempty" toml:"max_rows,omitempty"`
}

// Validate checks the fields common to every kind.
func (d Definition) Validate() error {
	switch {
	case d.ID <= 0:
		return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: id must be positive", d.Name)
	case d.Name == "":
		return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %d: name is required", d.ID)
	case d.Description == "":
		return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: description is required", d.Name)
	}
	switch d.Kind {
	case KindStatic:
	case KindAPI:
		if d.Endpoint == "" {
			return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: endpoint is required", d.Name)
		}
	case KindSQL:
		if d.Query == "" {
			return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: query is required", d.Name)
		}
	default:
		return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// BuildOptions supply the resources plugins need.
type BuildOptions struct {
	HTTPClient *http.Client
	// OpenDB opens a database for SQL plugins. Defaults to sql.Open.
	OpenDB func(driver, dsn string) (*sql.DB, error)
}

// New builds a Handle from a definition.
func New(def Definition, optFns ...func(o *BuildOptions)) (Handle, error) {
	opts := BuildOptions{HTTPClient: http.DefaultClient, OpenDB: sql.Open}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	b := base{def: def, selector: SearchTerms(def.SearchTerms...)}
	switch def.Kind {
	case KindStatic:
		return &Static{base: b}, nil
	case KindAPI:
		return &API{base: b, client: opts.HTTPClient}, nil
	default:
		db, err := opts.OpenDB(def.Driver, def.DSN)
		if err != nil {
			return nil, core.WrapError(core.ErrConfiguration, "plugin.new", fmt.Errorf("plugin %q: %w", def.Name, err))
		}
		return NewSQL(def, db)
	}
}

// base carries the identity shared by every kind.
type base struct {
	def      Definition
	selector Selector
}

func (b *base) ID() int64           { return b.def.ID }
func (b *base) Name() string        { return b.def.Name }
func (b *base) Description() string { return b.def.Description }

func (b *base) Parameters() map[string]any {
	if len(b.def.Parameters) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return b.def.Parameters
}

func (b *base) Selected(user *core.User, input string, messages []core.Message) bool {
	if b.selector == nil {
		return false
	}
	return b.selector.Select(user, input, messages)
}

func invokeError(name, format string, args ...any) *tool.ToolError {
	return tool.NewToolError(name, fmt.Sprintf(format, args...), tool.CodeExecution)
}

func argString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
