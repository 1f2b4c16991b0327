package prompt

import (
	"embed"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func mustTemplate(name string) string {
	raw, err := templateFS.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		panic(err)
	}
	return strings.TrimRight(string(raw), "\n")
}

// Built-in style names.
const (
	StyleZeroShot              = "zero_shot"
	StyleZeroShotDynamicSystem = "zero_shot_dynamic_system"
	StyleCatalogTable          = "catalog_table"
	StyleCatalogNumbered       = "catalog_numbered"
	StyleCatalogJSON           = "catalog_json"
)

// DefaultStyle is used when no style is configured.
const DefaultStyle = StyleZeroShot

var presets = []Style{
	{
		Name:             StyleZeroShot,
		CatalogSource:    SourceDynamic,
		CatalogRendering: RenderNumbered,
		SystemRefresh:    RefreshOnce,
		ChoiceList:       ListBullet,
		System:           mustTemplate("zero_shot_system"),
		UserFirst:        mustTemplate("zero_shot_user_first"),
		User:             mustTemplate("zero_shot_user"),
	},
	{
		Name:             StyleZeroShotDynamicSystem,
		CatalogSource:    SourceDynamic,
		CatalogRendering: RenderNumbered,
		SystemRefresh:    RefreshEveryTurn,
		ChoiceList:       ListBullet,
		System:           mustTemplate("dynamic_system_system"),
		UserFirst:        mustTemplate("dynamic_system_user_first"),
		User:             mustTemplate("dynamic_system_user"),
	},
	{
		Name:             StyleCatalogTable,
		CatalogSource:    SourceStatic,
		CatalogRendering: RenderTable,
		SystemRefresh:    RefreshOnce,
		ChoiceList:       ListBullet,
		System:           mustTemplate("catalog_system"),
		UserFirst:        mustTemplate("catalog_user_first"),
		User:             mustTemplate("catalog_user"),
	},
	{
		Name:                StyleCatalogNumbered,
		CatalogSource:       SourceStatic,
		CatalogRendering:    RenderNumbered,
		SystemRefresh:       RefreshOnce,
		ChoiceList:          ListNumbered,
		GenericPlaceholders: boolPtr(true),
		System:              mustTemplate("catalog_system"),
		UserFirst:           mustTemplate("catalog_user_first"),
		User:                mustTemplate("catalog_user"),
	},
	{
		Name:             StyleCatalogJSON,
		CatalogSource:    SourceStatic,
		CatalogRendering: RenderJSON,
		SystemRefresh:    RefreshOnce,
		ChoiceList:       ListBullet,
		System:           mustTemplate("catalog_system"),
		UserFirst:        mustTemplate("catalog_user_first"),
		User:             mustTemplate("catalog_user"),
	},
}

func boolPtr(b bool) *bool { return &b }

// Preset returns a built-in style by name.
func Preset(name string) (Style, bool) {
	for _, s := range presets {
		if s.Name == name {
			return s, true
		}
	}
	return Style{}, false
}

// Default returns the DefaultStyle preset.
func Default() Style {
	s, _ := Preset(DefaultStyle)
	return s
}

// Prompts is a compiled Style ready to render an episode.
type Prompts struct {
	style     Style
	system    *Template
	userFirst *Template
	user      *Template

	// pre-rendered block for static catalogs
	catalog string
}

// Compile validates s and parses its templates.
func Compile(s Style) (*Prompts, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	p := &Prompts{style: s}
	var err error
	if p.system, err = ParseTemplate(s.Name+"/system", s.System); err != nil {
		return nil, err
	}
	if p.userFirst, err = ParseTemplate(s.Name+"/user_first", s.UserFirst); err != nil {
		return nil, err
	}
	if p.user, err = ParseTemplate(s.Name+"/user", s.User); err != nil {
		return nil, err
	}

	if s.CatalogSource == SourceStatic {
		p.catalog, err = RenderCatalog(Catalog(s.Generic()), s.CatalogRendering)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to render static catalog", goerr.Value("style", s.Name))
		}
	}
	return p, nil
}

func (p *Prompts) Style() Style { return p.style }

// RefreshSystem reports whether the system prompt is re-rendered every turn.
func (p *Prompts) RefreshSystem() bool {
	return p.style.SystemRefresh == RefreshEveryTurn
}

// Data merges the snapshot fields with the style's local fields.
func (p *Prompts) Data(snap *core.Snapshot) (Data, error) {
	d := snapshotData(snap, p.style.ChoiceList)

	switch p.style.CatalogSource {
	case SourceStatic:
		d[KeyActionCatalog] = p.catalog
	case SourceDynamic:
		if snap != nil && snap.Has(core.KeyChoices) {
			block, err := RenderCatalog(choiceCatalog(snap.Choices.Actions), p.style.CatalogRendering)
			if err != nil {
				return nil, err
			}
			d[KeyActionCatalog] = block
		}
	}
	return d, nil
}

func (p *Prompts) System(d Data) (string, error)    { return p.system.Render(d) }
func (p *Prompts) UserFirst(d Data) (string, error) { return p.userFirst.Render(d) }
func (p *Prompts) User(d Data) (string, error)      { return p.user.Render(d) }

// Templates returns the system, first-user and user templates in that order.
func (p *Prompts) Templates() []*Template {
	return []*Template{p.system, p.userFirst, p.user}
}
