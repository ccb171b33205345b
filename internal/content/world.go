package content

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/fabula/internal/engine/world"
)

// entityDoc is the YAML shape of one entity in the world file.
type entityDoc struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name,omitempty"`
	Behaviors []string       `yaml:"behaviors,omitempty"`
	Props     map[string]any `yaml:"props,omitempty"`
}

// worldDoc is the YAML shape of the world file.
type worldDoc struct {
	Entities []entityDoc `yaml:"entities"`
}

// LoadWorld reads the initial entity set from a YAML file. Unknown fields
// are rejected.
//
// Precondition: path must be a readable YAML file.
// Postcondition: returns a populated World or a non-nil error.
func LoadWorld(path string) (*world.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: reading world file %q: %w", path, err)
	}

	var doc worldDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("content: parsing world file %q: %w", path, err)
	}

	w := world.New()
	for _, e := range doc.Entities {
		ent := &world.Entity{
			ID:        e.ID,
			Name:      e.Name,
			Behaviors: e.Behaviors,
			Props:     e.Props,
		}
		if err := w.AddEntity(ent); err != nil {
			return nil, fmt.Errorf("content: world file %q: %w", path, err)
		}
	}
	return w, nil
}
