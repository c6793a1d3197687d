// Package openapi generates an OpenAPI 3.0 specification from the registered
// entity definitions. The document is rebuilt on every request, so it always
// reflects the current registry rather than a compile-time snapshot.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string              `json:"tags,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	OperationID string                `json:"operationId,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   map[string]Response   `json:"responses"`
	Security    []SecurityRequirement `json:"security,omitempty"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name     string  `json:"name"`
	In       string  `json:"in"`
	Required bool    `json:"required,omitempty"`
	Schema   *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Format     string             `json:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Ref        string             `json:"$ref,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas         map[string]*Schema        `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`
}

// SecurityScheme defines an authentication method.
type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SecurityRequirement specifies required security schemes.
type SecurityRequirement map[string][]string

// Tag provides metadata for a group of operations.
type Tag struct {
	Name string `json:"name"`
}

// Generator builds specs from the definition registry.
type Generator struct {
	store  ports.ModelStore
	info   Info
	logger zerolog.Logger
}

// NewGenerator creates an OpenAPI generator over the registry.
func NewGenerator(store ports.ModelStore, version string, logger zerolog.Logger) *Generator {
	return &Generator{
		store: store,
		info: Info{
			Title:       "SchemaSmith API",
			Description: "Auto-generated API documentation for published entities",
			Version:     version,
		},
		logger: logger,
	}
}

// Generate creates the specification for the given definitions.
func (g *Generator) Generate(defs []model.Definition) *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: make(map[string]*Schema),
			SecuritySchemes: map[string]SecurityScheme{
				"bearerAuth": {
					Type:         "http",
					Scheme:       "bearer",
					BearerFormat: "JWT",
					Description:  "JWT authentication",
				},
			},
		},
		Tags: make([]Tag, 0),
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	for _, def := range defs {
		g.generateEntity(spec, def)
	}
	return spec
}

// ServeHTTP serves the current specification as JSON.
func (g *Generator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defs, err := g.store.List(r.Context())
	if err != nil {
		g.logger.Error().Err(err).Msg("listing definitions for openapi failed")
		http.Error(w, "failed to build specification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.Generate(defs))
}

func (g *Generator) generateEntity(spec *Spec, def model.Definition) {
	name := def.Name
	base := "/" + def.BasePath()

	spec.Tags = append(spec.Tags, Tag{Name: name})
	spec.Components.Schemas[name] = recordSchema(def)
	spec.Components.Schemas[name+"Input"] = inputSchema(def)

	ref := &Schema{Ref: "#/components/schemas/" + name}
	inputRef := &Schema{Ref: "#/components/schemas/" + name + "Input"}
	security := []SecurityRequirement{{"bearerAuth": {}}}
	idParam := Parameter{Name: "id", In: "path", Required: true, Schema: &Schema{Type: "integer"}}

	spec.Paths[base] = PathItem{
		Get: &Operation{
			Tags:        []string{name},
			Summary:     fmt.Sprintf("List %s records", name),
			OperationID: "list" + name,
			Security:    security,
			Responses: map[string]Response{
				"200": jsonResponse("Records", &Schema{Type: "array", Items: ref}),
				"401": {Description: "Unauthorized"},
				"403": {Description: "Forbidden"},
			},
		},
		Post: &Operation{
			Tags:        []string{name},
			Summary:     fmt.Sprintf("Create a %s record", name),
			OperationID: "create" + name,
			Security:    security,
			RequestBody: &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: inputRef}},
			},
			Responses: map[string]Response{
				"201": jsonResponse("Created record", ref),
				"400": {Description: "Invalid body"},
				"401": {Description: "Unauthorized"},
				"403": {Description: "Forbidden"},
			},
		},
	}

	spec.Paths[base+"/{id}"] = PathItem{
		Get: &Operation{
			Tags:        []string{name},
			Summary:     fmt.Sprintf("Get a %s record", name),
			OperationID: "get" + name,
			Parameters:  []Parameter{idParam},
			Security:    security,
			Responses: map[string]Response{
				"200": jsonResponse("Record", ref),
				"404": {Description: "Not found"},
			},
		},
		Put: &Operation{
			Tags:        []string{name},
			Summary:     fmt.Sprintf("Update a %s record", name),
			OperationID: "update" + name,
			Parameters:  []Parameter{idParam},
			Security:    security,
			RequestBody: &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: inputRef}},
			},
			Responses: map[string]Response{
				"200": jsonResponse("Updated record", ref),
				"404": {Description: "Not found"},
			},
		},
		Delete: &Operation{
			Tags:        []string{name},
			Summary:     fmt.Sprintf("Delete a %s record", name),
			OperationID: "delete" + name,
			Parameters:  []Parameter{idParam},
			Security:    security,
			Responses: map[string]Response{
				"204": {Description: "Deleted"},
				"404": {Description: "Not found"},
			},
		},
	}
}

// recordSchema describes a stored record: identity, user fields, timestamps.
func recordSchema(def model.Definition) *Schema {
	schema := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"id":        {Type: "integer"},
			"createdAt": {Type: "string", Format: "date-time"},
			"updatedAt": {Type: "string", Format: "date-time"},
		},
	}
	for _, f := range def.Fields {
		schema.Properties[f.Name] = fieldSchema(f)
	}
	return schema
}

// inputSchema describes the writable fields of create/update requests.
func inputSchema(def model.Definition) *Schema {
	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}
	for _, f := range def.Fields {
		schema.Properties[f.Name] = fieldSchema(f)
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	return schema
}

func fieldSchema(f model.Field) *Schema {
	switch f.Type {
	case model.FieldTypeNumber:
		return &Schema{Type: "integer"}
	case model.FieldTypeBoolean:
		return &Schema{Type: "boolean"}
	case model.FieldTypeDatetime:
		return &Schema{Type: "string", Format: "date-time"}
	default:
		return &Schema{Type: "string"}
	}
}

func jsonResponse(description string, schema *Schema) Response {
	return Response{
		Description: description,
		Content:     map[string]MediaType{"application/json": {Schema: schema}},
	}
}
