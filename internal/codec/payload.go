package codec

import "encoding/json"

// SchemaVersion is the only payload shape version this codec understands.
const SchemaVersion = 1

// Wire shapes. Field order here is the field order of encoded output.

type payload struct {
	SchemaVersion int           `json:"schemaVersion"`
	Namespace     string        `json:"namespace"`
	Version       string        `json:"version,omitempty"`
	Flags         []flagPayload `json:"flags"`
	RemoveKeys    []string      `json:"removeKeys,omitempty"`
}

type flagPayload struct {
	Key     string          `json:"key"`
	Type    string          `json:"type"`
	Tag     string          `json:"tag,omitempty"`
	Enum    []string        `json:"enum,omitempty"`
	Default json.RawMessage `json:"default"`
	Salt    string          `json:"salt,omitempty"`
	Active  *bool           `json:"active,omitempty"`
	Rules   []rulePayload   `json:"rules,omitempty"`
}

type rulePayload struct {
	Value     json.RawMessage     `json:"value"`
	Rollout   *float64            `json:"rollout,omitempty"`
	Note      string              `json:"note,omitempty"`
	Salt      string              `json:"salt,omitempty"`
	Locales   []string            `json:"locales,omitempty"`
	Platforms []string            `json:"platforms,omitempty"`
	Version   *versionPayload     `json:"version,omitempty"`
	Axes      map[string][]string `json:"axes,omitempty"`
	Custom    *customPayload      `json:"custom,omitempty"`
}

type versionPayload struct {
	Kind string `json:"kind"`
	Min  string `json:"min,omitempty"`
	Max  string `json:"max,omitempty"`
}

type customPayload struct {
	Expr   string `json:"expr"`
	Weight int    `json:"weight"`
}

// PeekNamespace reads only the namespace field of a JSON payload, so hosts
// can pick the codec before decoding the whole document.
func PeekNamespace(data []byte) (string, error) {
	var head struct {
		Namespace string `json:"namespace"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", newBoundaryError(Malformed, "", "payload is not valid JSON", err)
	}
	if head.Namespace == "" {
		return "", newBoundaryError(Malformed, "namespace", "payload does not name a namespace", nil)
	}
	return head.Namespace, nil
}

// PeekNamespaceYAML is PeekNamespace for YAML input.
func PeekNamespaceYAML(data []byte) (string, error) {
	js, err := yamlToJSON(data)
	if err != nil {
		return "", err
	}
	return PeekNamespace(js)
}
