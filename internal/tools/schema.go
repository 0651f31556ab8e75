package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// MustSchema reflects a JSON Schema object from a tagged args struct. Field
// names come from json tags; fields without omitempty are required;
// descriptions come from jsonschema tags. It panics on unreflectable types,
// which is a programmer error caught at registration time.
func MustSchema(v any) map[string]any {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("reflect args schema: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("reflect args schema: %v", err))
	}
	// The advertised schema stays minimal: object shape, properties, required.
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
