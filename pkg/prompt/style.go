package prompt

import (
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// CatalogSource selects where the action catalog comes from.
type CatalogSource string

const (
	// SourceStatic renders the fixed action template table.
	SourceStatic CatalogSource = "static"
	// SourceDynamic renders the engine's currently valid choices every turn.
	SourceDynamic CatalogSource = "dynamic"
)

// Rendering selects how the catalog block is laid out.
type Rendering string

const (
	RenderTable    Rendering = "table"
	RenderNumbered Rendering = "numbered"
	RenderJSON     Rendering = "json"
)

// Refresh selects when the system prompt is rendered.
type Refresh string

const (
	RefreshOnce      Refresh = "once"
	RefreshEveryTurn Refresh = "every_turn"
)

// ListFormat selects how object and action lists are joined.
type ListFormat string

const (
	ListBullet   ListFormat = "bullet"
	ListNumbered ListFormat = "numbered"
)

// Style is one prompt flavor: catalog presentation, refresh policy and the
// three templates rendered over an episode.
type Style struct {
	Name                string        `yaml:"name"`
	Base                string        `yaml:"base,omitempty"`
	CatalogSource       CatalogSource `yaml:"catalog_source"`
	CatalogRendering    Rendering     `yaml:"catalog_rendering"`
	SystemRefresh       Refresh       `yaml:"system_refresh"`
	ChoiceList          ListFormat    `yaml:"choice_list"`
	GenericPlaceholders *bool         `yaml:"generic_placeholders,omitempty"` // nil inherits from base

	System    string `yaml:"system"`
	UserFirst string `yaml:"user_first"`
	User      string `yaml:"user"`
}

// Generic reports whether location placeholders collapse into OBJ.
func (s Style) Generic() bool {
	return s.GenericPlaceholders != nil && *s.GenericPlaceholders
}

func (s Style) Validate() error {
	if s.Name == "" {
		return goerr.Wrap(ErrInvalidStyle, "name is required")
	}
	switch s.CatalogSource {
	case SourceStatic, SourceDynamic:
	default:
		return goerr.Wrap(ErrInvalidStyle, "unknown catalog_source",
			goerr.Value("style", s.Name), goerr.Value("catalog_source", s.CatalogSource))
	}
	switch s.CatalogRendering {
	case RenderTable, RenderNumbered, RenderJSON:
	default:
		return goerr.Wrap(ErrInvalidStyle, "unknown catalog_rendering",
			goerr.Value("style", s.Name), goerr.Value("catalog_rendering", s.CatalogRendering))
	}
	switch s.SystemRefresh {
	case RefreshOnce, RefreshEveryTurn:
	default:
		return goerr.Wrap(ErrInvalidStyle, "unknown system_refresh",
			goerr.Value("style", s.Name), goerr.Value("system_refresh", s.SystemRefresh))
	}
	switch s.ChoiceList {
	case ListBullet, ListNumbered:
	default:
		return goerr.Wrap(ErrInvalidStyle, "unknown choice_list",
			goerr.Value("style", s.Name), goerr.Value("choice_list", s.ChoiceList))
	}
	if s.System == "" || s.UserFirst == "" || s.User == "" {
		return goerr.Wrap(ErrInvalidStyle, "system, user_first and user templates are required",
			goerr.Value("style", s.Name))
	}
	return nil
}

// inherit fills unset fields from base.
func (s Style) inherit(base Style) Style {
	if s.CatalogSource == "" {
		s.CatalogSource = base.CatalogSource
	}
	if s.CatalogRendering == "" {
		s.CatalogRendering = base.CatalogRendering
	}
	if s.SystemRefresh == "" {
		s.SystemRefresh = base.SystemRefresh
	}
	if s.ChoiceList == "" {
		s.ChoiceList = base.ChoiceList
	}
	if s.GenericPlaceholders == nil && base.GenericPlaceholders != nil {
		v := *base.GenericPlaceholders
		s.GenericPlaceholders = &v
	}
	if s.System == "" {
		s.System = base.System
	}
	if s.UserFirst == "" {
		s.UserFirst = base.UserFirst
	}
	if s.User == "" {
		s.User = base.User
	}
	return s
}

// Registry holds the named styles available to episodes.
type Registry struct {
	styles map[string]Style
}

// NewRegistry returns a registry seeded with the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{styles: make(map[string]Style, len(presets))}
	for _, s := range presets {
		r.styles[s.Name] = s
	}
	return r
}

// Add validates and registers s, resolving its base style first.
func (r *Registry) Add(s Style) error {
	if s.Base != "" {
		base, ok := r.styles[s.Base]
		if !ok {
			return goerr.Wrap(ErrUnknownStyle, "unknown base style",
				goerr.Value("style", s.Name), goerr.Value("base", s.Base))
		}
		s = s.inherit(base)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.styles[s.Name] = s
	return nil
}

func (r *Registry) Get(name string) (Style, error) {
	s, ok := r.styles[name]
	if !ok {
		return Style{}, goerr.Wrap(ErrUnknownStyle, "style not registered", goerr.Value("style", name))
	}
	return s, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.styles))
	for name := range r.styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type stylesFile struct {
	Styles []Style `yaml:"styles"`
}

// LoadFile registers every style declared in a YAML styles file. Styles are
// added in file order so later entries may use earlier ones as base.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read styles file", goerr.Value("path", path))
	}
	var f stylesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return goerr.Wrap(err, "failed to parse styles file", goerr.Value("path", path))
	}
	for _, s := range f.Styles {
		if err := r.Add(s); err != nil {
			return goerr.Wrap(err, "invalid style in styles file", goerr.Value("path", path))
		}
	}
	return nil
}
