package codec

import (
	"encoding/json"
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"gopkg.in/yaml.v3"
)

// DecodeYAML accepts the payload shape written as YAML.
func (c *Codec) DecodeYAML(data []byte) (*domain.Snapshot, error) {
	js, err := yamlToJSON(data)
	if err != nil {
		return nil, err
	}
	return c.Decode(js)
}

// DecodePatchYAML is DecodePatch for YAML input.
func (c *Codec) DecodePatchYAML(data []byte) (domain.Patch, error) {
	js, err := yamlToJSON(data)
	if err != nil {
		return domain.Patch{}, err
	}
	return c.DecodePatch(js)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newBoundaryError(Malformed, "", "payload is not valid YAML", err)
	}

	normalized, err := jsonCompatible(doc)
	if err != nil {
		return nil, newBoundaryError(Malformed, "", "payload cannot be represented as JSON", err)
	}

	js, err := json.Marshal(normalized)
	if err != nil {
		return nil, newBoundaryError(Malformed, "", "payload cannot be represented as JSON", err)
	}
	return js, nil
}

// jsonCompatible rewrites the map[any]any nodes yaml produces for non-string
// keys into map[string]any.
func jsonCompatible(v any) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			converted, err := jsonCompatible(child)
			if err != nil {
				return nil, err
			}
			node[k] = converted
		}
		return node, nil
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", k)
			}
			converted, err := jsonCompatible(child)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		for i, child := range node {
			converted, err := jsonCompatible(child)
			if err != nil {
				return nil, err
			}
			node[i] = converted
		}
		return node, nil
	default:
		return v, nil
	}
}
