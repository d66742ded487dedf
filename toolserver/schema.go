package toolserver

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// AddDataArgs describes the arguments of add_data. It is only used to
// generate the advertised input schema; handlers read the raw arguments so
// they can report which one is missing.
type AddDataArgs struct {
	Name       string `json:"name" jsonschema:"minLength=1" jsonschema_description:"Person's name"`
	Age        int    `json:"age" jsonschema:"minimum=0" jsonschema_description:"Person's age in whole years"`
	Profession string `json:"profession" jsonschema:"minLength=1" jsonschema_description:"Person's profession"`
}

// FilterArg is one typed condition of read_data.
type FilterArg struct {
	Field string `json:"field" jsonschema:"enum=id,enum=name,enum=age,enum=profession" jsonschema_description:"Column to compare"`
	Op    string `json:"op" jsonschema:"enum=eq,enum=ne,enum=lt,enum=le,enum=gt,enum=ge,enum=contains" jsonschema_description:"Comparison operator; contains is a case-insensitive substring match on name or profession"`
	Value any    `json:"value" jsonschema_description:"Value to compare with: an integer for id and age or a string for name and profession"`
}

// ReadDataArgs describes the arguments of read_data. Both are optional;
// without filters every record is returned.
type ReadDataArgs struct {
	Filters []FilterArg `json:"filters,omitempty" jsonschema_description:"Conditions that must all hold"`
	Limit   int         `json:"limit,omitempty" jsonschema:"minimum=0" jsonschema_description:"Maximum number of records to return"`
}

// GenerateSchema reflects T into an inline JSON schema without $ref or
// $schema entries, the shape tool-calling models expect.
func GenerateSchema[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return json.Marshal(schema)
}
