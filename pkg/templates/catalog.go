// pkg/templates/catalog.go
package templates

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// Catalog is a versioned set of message templates loaded from a JSON file.
// The daemon ships with a built-in catalog; operators can point it at their
// own file instead.
type Catalog struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template is one canned message body. Placeholders use {{field}} syntax and
// are filled from lead data at render time.
type Template struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Body     string   `json:"body"`
	Usage    string   `json:"usage,omitempty"`
	Channels []string `json:"channels,omitempty"` // sms, email; empty means any
	Tags     []string `json:"tags,omitempty"`
}

const catalogSchema = `{
	"type": "object",
	"required": ["version", "templates"],
	"properties": {
		"version":     {"type": "string"},
		"lastUpdated": {"type": "string"},
		"templates": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "body"],
				"properties": {
					"id":       {"type": "string", "minLength": 1},
					"name":     {"type": "string", "minLength": 1},
					"body":     {"type": "string", "minLength": 1},
					"usage":    {"type": "string"},
					"channels": {"type": "array", "items": {"type": "string", "enum": ["sms", "email"]}},
					"tags":     {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var compiledCatalogSchema *gojsonschema.Schema

func init() {
	var err error
	compiledCatalogSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(catalogSchema))
	if err != nil {
		panic(fmt.Sprintf("templates: catalog schema does not compile: %v", err))
	}
}

// LoadCatalog reads and validates a template catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog validates raw catalog JSON against the schema and decodes it.
func ParseCatalog(data []byte) (*Catalog, error) {
	result, err := compiledCatalogSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog validation: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid catalog: %s", result.Errors()[0].String())
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, t := range cat.Templates {
		if seen[t.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return &cat, nil
}

// Find returns the template with the given id, nil when absent.
func (c *Catalog) Find(id string) *Template {
	for i := range c.Templates {
		if c.Templates[i].ID == id {
			return &c.Templates[i]
		}
	}
	return nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Version: "1",
		Templates: []Template{
			{
				ID:   "intro",
				Name: "Intro",
				Body: "Hi, I saw your listing at {{address}}. Would you consider an offer?",
			},
			{
				ID:   "follow-up",
				Name: "Follow up",
				Body: "Just checking back in about {{address}}. Still interested in selling?",
			},
			{
				ID:    "new-lead-alert",
				Name:  "New lead alert",
				Body:  "New lead: {{address}}, {{city}}, listed at ${{listingPrice}}, MAO ${{mao}} ({{spreadPercent}}% spread, score {{leadScore}}/10)",
				Usage: "operator alert",
			},
		},
	}
}
