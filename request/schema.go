package request

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/reductionist/errors"
)

// layoutProperties are the schema properties shared by both wire versions.
const layoutProperties = `
    "dtype": {"enum": ["i32", "i64", "u32", "u64", "f32", "f64"]},
    "byte_order": {"enum": ["big", "little"]},
    "offset": {"type": "integer", "minimum": 0},
    "size": {"type": "integer", "minimum": 1},
    "shape": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "integer", "minimum": 1}
    },
    "order": {"enum": ["C", "F"]},
    "axis": {
      "oneOf": [
        {"type": "integer", "minimum": 0},
        {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 0}}
      ]
    },
    "selection": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "array",
        "minItems": 3,
        "maxItems": 3,
        "items": {"type": "integer", "minimum": 0}
      }
    },
    "compression": {"enum": ["gzip", "zlib"]},
    "filters": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "element_size"],
        "properties": {
          "id": {"enum": ["shuffle"]},
          "element_size": {"type": "integer", "minimum": 1}
        }
      }
    },
    "missing": {
      "type": "object",
      "minProperties": 1,
      "maxProperties": 1,
      "additionalProperties": false,
      "properties": {
        "missing_value": {"type": "number"},
        "missing_values": {"type": "array", "minItems": 1, "items": {"type": "number"}},
        "valid_min": {"type": "number"},
        "valid_max": {"type": "number"},
        "valid_range": {"type": "array", "minItems": 2, "maxItems": 2, "items": {"type": "number"}}
      }
    }`

// SchemaV1 is the JSON schema of the legacy v1 request body.
var SchemaV1 = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Reductionist request (v1)",
  "type": "object",
  "additionalProperties": false,
  "required": ["source", "bucket", "object", "dtype"],
  "properties": {
    "source": {"type": "string", "minLength": 1},
    "bucket": {"type": "string", "minLength": 1},
    "object": {"type": "string", "minLength": 1},` + layoutProperties + `
  }
}`

// SchemaV2 is the JSON schema of the preferred v2 request body. It is also
// served verbatim at /.well-known/reductionist-schema.
var SchemaV2 = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Reductionist request (v2)",
  "type": "object",
  "additionalProperties": false,
  "required": ["interface_type", "url", "dtype"],
  "properties": {
    "interface_type": {"enum": ["s3", "http", "https"]},
    "url": {"type": "string", "minLength": 1},` + layoutProperties + `
  }
}`

var (
	schemaV1 = mustCompile(SchemaV1)
	schemaV2 = mustCompile(SchemaV2)
)

func mustCompile(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("request: invalid embedded schema: %v", err))
	}
	return schema
}

// validateSchema runs the structural validation stage. Semantic invariants
// that the schema cannot express are checked by Descriptor.validate.
func validateSchema(version Version, body []byte) error {
	schema := schemaV2
	if version == V1 {
		schema = schemaV1
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.Wrap(err, errors.KindBadRequest, "request", "validateSchema", "parse body")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.Newf(errors.KindBadRequest, "request", "validateSchema",
			"request data is not valid: %s", strings.Join(msgs, "; "))
	}
	return nil
}
