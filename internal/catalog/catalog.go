package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Topic is one entry of the word catalog. The JSON keys match the
// chameleon_topics.json format shipped with the clients.
type Topic struct {
	Name    string   `json:"topic"`
	Options []string `json:"options"`
}

// Catalog is the fixed, ordered topic list loaded once at startup.
// A topic with no options is valid; rounds drawn from it have no word.
type Catalog struct {
	topics []Topic
}

func New(topics []Topic) *Catalog {
	return &Catalog{topics: topics}
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}

	var topics []Topic
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	for i := range topics {
		opts := topics[i].Options[:0]
		for _, o := range topics[i].Options {
			if o != "" {
				opts = append(opts, o)
			}
		}
		topics[i].Options = opts
	}

	return &Catalog{topics: topics}, nil
}

func (c *Catalog) Len() int {
	return len(c.topics)
}

// Topic returns the catalog entry at index i, or a placeholder if the
// index is out of range (stale index in a persisted room doc).
func (c *Catalog) Topic(i int) Topic {
	if i < 0 || i >= len(c.topics) {
		return Topic{Name: "Topic"}
	}
	return c.topics[i]
}
