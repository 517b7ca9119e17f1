package plugin

import (
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StyleInjector stores CSS fragments by key.
type StyleInjector interface {
	Upsert(key, css string)
	Remove(key string)
}

// StyleKey returns the CSS key a plugin's stylesheet is stored under.
func StyleKey(pluginName string) string {
	return "plugin-" + pluginName
}

// Context provides dependencies to a plugin's Start and Stop hooks.
type Context struct {
	// Name is the plugin's name.
	Name string

	// Logger is already namespaced with the plugin name.
	Logger *zap.Logger

	// Config is the plugin's entry from the settings snapshot. It is a copy
	// and may be read freely.
	Config map[string]any

	mu       sync.Mutex
	styles   StyleInjector
	detached bool
}

// NewContext creates a plugin context.
func NewContext(name string, logger *zap.Logger, config map[string]any, styles StyleInjector) *Context {
	if config == nil {
		config = make(map[string]any)
	}
	return &Context{
		Name:   name,
		Logger: logger,
		Config: maps.Clone(config),
		styles: styles,
	}
}

// ApplyCSS replaces the plugin's stylesheet. It is removed automatically
// when the plugin stops.
//
// Once the context is detached, ApplyCSS does nothing.
func (c *Context) ApplyCSS(css string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.styles == nil || c.detached {
		return
	}
	c.styles.Upsert(StyleKey(c.Name), css)
}

// Detach cuts the context off from the plugin's stylesheet. When Detach
// returns, no ApplyCSS call through this context is in flight or can
// follow.
func (c *Context) Detach() {
	c.mu.Lock()
	c.detached = true
	c.mu.Unlock()
}

// String returns the config value for key, or def when it is missing or not a string.
func (c *Context) String(key, def string) string {
	if v, ok := c.Config[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the config value for key, or def when it is missing or not a bool.
func (c *Context) Bool(key string, def bool) bool {
	if v, ok := c.Config[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns the config value for key as a string slice.
// YAML lists decode as []any, so both shapes are accepted.
func (c *Context) Strings(key string, def []string) []string {
	switch v := c.Config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}

// Int returns the config value for key as an int. YAML and JSON decoders
// produce different numeric types, so any integral number is accepted.
func (c *Context) Int(key string, def int) int {
	switch v := c.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Duration returns the config value for key parsed as a time.Duration
// string such as "90s".
func (c *Context) Duration(key string, def time.Duration) time.Duration {
	s, ok := c.Config[key].(string)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
