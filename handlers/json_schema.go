package handlers

import "github.com/xeipuuv/gojsonschema"

const ingestFields = `
		"title": {"type": "string", "minLength": 1, "maxLength": 512},
		"description": {"type": "string", "maxLength": 10000},
		"genre": {"type": "string", "maxLength": 128},
		"epochs": {"type": "integer", "minimum": 1, "maximum": 1000},
		"payment_proof_id": {"type": "string", "maxLength": 256}`

// IngestURLRequestSchemaDefinition covers JSON requests naming a remote source
const IngestURLRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"source_url": {"type": "string", "minLength": 1},` + ingestFields + `
	},
	"required": ["source_url", "title"]
}`

// IngestUploadSchemaDefinition covers the form fields sent along with a file
const IngestUploadSchemaDefinition = `{
	"type": "object",
	"properties": {` + ingestFields + `
	},
	"required": ["title"]
}`

var inputSchemas map[string]string = map[string]string{
	"IngestURL":    IngestURLRequestSchemaDefinition,
	"IngestUpload": IngestUploadSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// rase panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
