package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the YAML shape of a record batch as stored by remote
// origins and persisted by file based stores.
type Document struct {
	Records []Record `yaml:"records" json:"records"`
}

// Decode parses a YAML document into records. Both the `records:` mapping
// and a bare top-level sequence are accepted. An empty input is an empty batch.
func Decode(data []byte) ([]Record, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return []Record{}, nil
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var records []Record
		if err := node.Decode(&records); err != nil {
			return nil, err
		}
		return Clone(records), nil
	case yaml.MappingNode:
		var doc Document
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		return Clone(doc.Records), nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return []Record{}, nil
		}
	}
	return nil, fmt.Errorf("unexpected yaml node at line %d: want mapping or sequence", node.Line)
}

// Encode renders records as a YAML Document.
func Encode(records []Record) ([]byte, error) {
	return yaml.Marshal(Document{Records: Clone(records)})
}
