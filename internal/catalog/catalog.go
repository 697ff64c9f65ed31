package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Entry struct {
	Key        string `yaml:"key"`
	Descriptor string `yaml:"descriptor"`
}

type PromptTemplates struct {
	System      string `yaml:"system"`
	User        string `yaml:"user"`
	Fallback    string `yaml:"fallback"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog is the creative vocabulary: the keys the preference model learns over and
// the text used to turn a (style, theme) pair into prompts and metadata.
type Catalog struct {
	Styles []Entry         `yaml:"styles"`
	Themes []Entry         `yaml:"themes"`
	Prompt PromptTemplates `yaml:"prompt"`

	styles map[string]Entry
	themes map[string]Entry
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file; an empty path yields the built-in catalog. Missing
// prompt templates in the file are filled from the built-in ones.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	def, err := Default()
	if err != nil {
		return nil, err
	}
	c.Prompt.fillFrom(def.Prompt)
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Styles) == 0 {
		return fmt.Errorf("catalog has no styles")
	}
	if len(c.Themes) == 0 {
		return fmt.Errorf("catalog has no themes")
	}
	var err error
	if c.styles, err = indexGroup("style", c.Styles); err != nil {
		return err
	}
	if c.themes, err = indexGroup("theme", c.Themes); err != nil {
		return err
	}
	return nil
}

// indexGroup trims keys in place and rejects empty or repeated keys within one group.
// The same key may appear as both a style and a theme.
func indexGroup(kind string, group []Entry) (map[string]Entry, error) {
	out := make(map[string]Entry, len(group))
	for i := range group {
		group[i].Key = strings.TrimSpace(group[i].Key)
		if group[i].Key == "" {
			return nil, fmt.Errorf("catalog %s %d has an empty key", kind, i)
		}
		if _, dup := out[group[i].Key]; dup {
			return nil, fmt.Errorf("duplicate catalog %s %q", kind, group[i].Key)
		}
		out[group[i].Key] = group[i]
	}
	return out, nil
}

func (c *Catalog) StyleKeys() []string { return keys(c.Styles) }
func (c *Catalog) ThemeKeys() []string { return keys(c.Themes) }

// StyleDescriptor returns the free-text descriptor for a style key, or the key itself.
func (c *Catalog) StyleDescriptor(key string) string { return describe(c.styles, key) }

// ThemeDescriptor returns the free-text descriptor for a theme key, or the key itself.
func (c *Catalog) ThemeDescriptor(key string) string { return describe(c.themes, key) }

func describe(index map[string]Entry, key string) string {
	if e, ok := index[key]; ok && e.Descriptor != "" {
		return e.Descriptor
	}
	return key
}

// Render substitutes {{name}} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func (p *PromptTemplates) fillFrom(def PromptTemplates) {
	if p.System == "" {
		p.System = def.System
	}
	if p.User == "" {
		p.User = def.User
	}
	if p.Fallback == "" {
		p.Fallback = def.Fallback
	}
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Description == "" {
		p.Description = def.Description
	}
}

func keys(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}
