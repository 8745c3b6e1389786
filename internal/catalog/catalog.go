package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Item is one selectable entry in the draft pool. Items are immutable;
// rooms work on copies of the catalog, never on the catalog itself.
type Item struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Default returns the built-in catalog of 20 cricket players.
func Default() []Item {
	return []Item{
		{ID: 1, Name: "Virat Kohli"},
		{ID: 2, Name: "Rohit Sharma"},
		{ID: 3, Name: "MS Dhoni"},
		{ID: 4, Name: "Sachin Tendulkar"},
		{ID: 5, Name: "Sourav Ganguly"},
		{ID: 6, Name: "Anil Kumble"},
		{ID: 7, Name: "Kapil Dev"},
		{ID: 8, Name: "Rahul Dravid"},
		{ID: 9, Name: "VVS Laxman"},
		{ID: 10, Name: "Yuvraj Singh"},
		{ID: 11, Name: "Hardik Pandya"},
		{ID: 12, Name: "Jasprit Bumrah"},
		{ID: 13, Name: "Ravindra Jadeja"},
		{ID: 14, Name: "Bhuvneshwar Kumar"},
		{ID: 15, Name: "Shikhar Dhawan"},
		{ID: 16, Name: "KL Rahul"},
		{ID: 17, Name: "Shreyas Iyer"},
		{ID: 18, Name: "Rishabh Pant"},
		{ID: 19, Name: "Mohammed Shami"},
		{ID: 20, Name: "Ishant Sharma"},
	}
}

// LoadFile reads a catalog override from a YAML file. The file is a
// plain list of items:
//
//	- id: 1
//	  name: Virat Kohli
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no items", path)
	}

	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Name == "" {
			return nil, fmt.Errorf("catalog item %d has no name", it.ID)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("catalog contains duplicate item id %d", it.ID)
		}
		seen[it.ID] = true
	}
	return items, nil
}

// Clone returns an independent copy of items, safe to mutate per room.
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
