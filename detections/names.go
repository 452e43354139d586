package detections

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
)

// namesMetadataKey is where the exporter stores the class table, written as
// a flow mapping such as {0: 'person', 1: 'bicycle'}.
const namesMetadataKey = "names"

// parseNames decodes a class table given either as an index→label mapping or
// as a label list.
func parseNames(data []byte) (map[int]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse class names: %w", err)
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return decodeNamesNode(node.Content[0])
	}
	return nil, fmt.Errorf("parse class names: empty document")
}

func decodeNamesNode(node *yaml.Node) (map[int]string, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse class names: %w", err)
		}
		names := make(map[int]string, len(list))
		for i, name := range list {
			names[i] = name
		}
		return names, nil
	case yaml.MappingNode:
		// A labels file may wrap the table in a top-level "names" key.
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "names" {
				return decodeNamesNode(node.Content[i+1])
			}
		}
		var names map[int]string
		if err := node.Decode(&names); err != nil {
			return nil, fmt.Errorf("parse class names: %w", err)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("parse class names: unexpected yaml node kind %d", node.Kind)
	}
}

func loadNamesFile(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	return parseNames(data)
}

func loadNamesMetadata(modelPath string) (map[int]string, error) {
	md, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	defer md.Destroy()

	raw, ok, err := md.LookupCustomMetadataMap(namesMetadataKey)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return parseNames([]byte(raw))
}
