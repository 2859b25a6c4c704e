// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// =============================================================================
// CATALOG TYPES
// =============================================================================

// Item is a titled entry (service, process step or guarantee).
type Item struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// WhatsApp is one WhatsApp contact number.
type WhatsApp struct {
	Country string `yaml:"country" json:"country"`
	Number  string `yaml:"number" json:"number"`
	Flag    string `yaml:"flag" json:"flag"`
}

// Contact groups the business contact channels.
type Contact struct {
	Email    string     `yaml:"email" json:"email"`
	WhatsApp []WhatsApp `yaml:"whatsapp" json:"whatsapp"`
}

// Link is a site page the assistant may point users to.
type Link struct {
	Path  string `yaml:"path" json:"path"`
	Label string `yaml:"label" json:"label"`
}

// NavigationGroup maps keywords in the user's message to a fixed
// link-bearing fragment.
type NavigationGroup struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Fragment string   `yaml:"fragment" json:"fragment"`
}

// HintGroup maps keywords found in the conversation to a prompt directive.
type HintGroup struct {
	Name      string   `yaml:"name" json:"name"`
	Keywords  []string `yaml:"keywords" json:"keywords"`
	Directive string   `yaml:"directive" json:"directive"`
}

// Replacement is one speech normalization rule. Rules apply in order.
type Replacement struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Sentiment lists the keywords that shape request temperature and length.
// Negations match whole words; Disinterest phrases match anywhere.
type Sentiment struct {
	Negations   []string `yaml:"negations" json:"negations"`
	Disinterest []string `yaml:"disinterest" json:"disinterest"`
}

// IntentGroup is one keyword rule of the intent classifier. Groups are
// tried in document order.
type IntentGroup struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Messages is the localized user-facing copy.
type Messages struct {
	Invalid         string `yaml:"invalid" json:"invalid"`
	Empty           string `yaml:"empty" json:"empty"`
	RateLimited     string `yaml:"rate_limited" json:"rate_limited"`
	Unavailable     string `yaml:"unavailable" json:"unavailable"`
	Internal        string `yaml:"internal" json:"internal"`
	Unintelligible  string `yaml:"unintelligible" json:"unintelligible"`
	ContactFallback string `yaml:"contact_fallback" json:"contact_fallback"`
}

// Catalog is an immutable snapshot of the business data. Do not modify a
// Catalog after handing it to a Store.
type Catalog struct {
	Company        string            `yaml:"company" json:"company"`
	Language       string            `yaml:"language" json:"language"`
	Persona        string            `yaml:"persona" json:"persona"`
	Services       []Item            `yaml:"services" json:"services"`
	ProcessSteps   []Item            `yaml:"process_steps" json:"process_steps"`
	Guarantees     []Item            `yaml:"guarantees" json:"guarantees"`
	Contact        Contact           `yaml:"contact" json:"contact"`
	Links          []Link            `yaml:"links" json:"links"`
	Navigation     []NavigationGroup `yaml:"navigation" json:"navigation"`
	Hints          []HintGroup       `yaml:"hints" json:"hints"`
	Speech         []Replacement     `yaml:"speech" json:"speech"`
	Sentiment      Sentiment         `yaml:"sentiment" json:"sentiment"`
	Intents        []IntentGroup     `yaml:"intents" json:"intents"`
	QuickQuestions []string          `yaml:"quick_questions" json:"quick_questions"`
	Messages       Messages          `yaml:"messages" json:"messages"`

	tag language.Tag
}

// =============================================================================
// LOADING
// =============================================================================

var defaultCatalog = mustParse(defaultYAML)

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// validate checks required fields and resolves the language tag.
func (c *Catalog) validate() error {
	var problems []string

	if strings.TrimSpace(c.Company) == "" {
		problems = append(problems, "company is required")
	}
	tag, err := language.Parse(c.Language)
	if err != nil {
		problems = append(problems, fmt.Sprintf("language %q: %v", c.Language, err))
	}
	c.tag = tag
	if strings.TrimSpace(c.Persona) == "" {
		problems = append(problems, "persona is required")
	}
	for i, g := range c.Navigation {
		if g.Fragment == "" || len(g.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("navigation[%d] needs keywords and a fragment", i))
		}
	}
	for i, h := range c.Hints {
		if h.Directive == "" || len(h.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("hints[%d] needs keywords and a directive", i))
		}
	}
	for i, g := range c.Intents {
		if g.Name == "" || len(g.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("intents[%d] needs a name and keywords", i))
		}
	}
	for i, r := range c.Speech {
		if r.From == "" {
			problems = append(problems, fmt.Sprintf("speech[%d].from is empty", i))
		}
	}

	m := c.Messages
	for name, v := range map[string]string{
		"invalid":        m.Invalid,
		"empty":          m.Empty,
		"rate_limited":   m.RateLimited,
		"unavailable":    m.Unavailable,
		"internal":       m.Internal,
		"unintelligible": m.Unintelligible,
	} {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, "messages."+name+" is required")
		}
	}

	if len(problems) > 0 {
		// Map iteration order is random; keep errors stable.
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// LanguageTag returns the BCP 47 tag of the catalog language.
func (c *Catalog) LanguageTag() language.Tag {
	return c.tag
}

// LanguageCode returns the canonical form of the catalog language, e.g. "es-ES".
func (c *Catalog) LanguageCode() string {
	return c.LanguageTag().String()
}

// ContactLine renders the contact fallback sentence, or "" when the catalog
// has no contact template.
func (c *Catalog) ContactLine() string {
	if c.Messages.ContactFallback == "" {
		return ""
	}
	whatsapp := ""
	if len(c.Contact.WhatsApp) > 0 {
		whatsapp = c.Contact.WhatsApp[0].Number
	}
	return strings.NewReplacer(
		"{email}", c.Contact.Email,
		"{whatsapp}", whatsapp,
		"{company}", c.Company,
	).Replace(c.Messages.ContactFallback)
}

// WithContact appends the contact fallback sentence to msg.
func (c *Catalog) WithContact(msg string) string {
	line := c.ContactLine()
	if line == "" {
		return msg
	}
	return msg + " " + line
}

// NavigationByName returns the navigation group with the given name.
func (c *Catalog) NavigationByName(name string) (NavigationGroup, bool) {
	for _, g := range c.Navigation {
		if g.Name == name {
			return g, true
		}
	}
	return NavigationGroup{}, false
}
