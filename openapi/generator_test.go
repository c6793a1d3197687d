package openapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/adapters/jsonstore"
	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/openapi"
)

func seededGenerator(t *testing.T) *openapi.Generator {
	t.Helper()
	store, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	def := model.New("Product", []model.Field{
		{Name: "title", Type: model.FieldTypeString, Required: true},
		{Name: "price", Type: model.FieldTypeNumber},
		{Name: "inStock", Type: model.FieldTypeBoolean},
	}, "", nil)
	if err := store.Put(context.Background(), def); err != nil {
		t.Fatal(err)
	}
	return openapi.NewGenerator(store, "1.0.0", zerolog.Nop())
}

func TestGenerateEntityPaths(t *testing.T) {
	g := seededGenerator(t)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var spec openapi.Spec
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatal(err)
	}
	if spec.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q", spec.OpenAPI)
	}

	collection, ok := spec.Paths["/product"]
	if !ok {
		t.Fatalf("collection path missing: %v", spec.Paths)
	}
	if collection.Get == nil || collection.Post == nil {
		t.Error("collection path missing list/create operations")
	}

	item, ok := spec.Paths["/product/{id}"]
	if !ok {
		t.Fatal("item path missing")
	}
	if item.Get == nil || item.Put == nil || item.Delete == nil {
		t.Error("item path missing operations")
	}
	if item.Delete.Responses["204"].Description == "" {
		t.Error("delete missing 204 response")
	}
}

func TestGenerateSchemas(t *testing.T) {
	g := seededGenerator(t)
	spec := g.Generate([]model.Definition{model.New("Product", []model.Field{
		{Name: "title", Type: model.FieldTypeString, Required: true},
		{Name: "price", Type: model.FieldTypeNumber},
		{Name: "inStock", Type: model.FieldTypeBoolean},
	}, "", nil)})

	record, ok := spec.Components.Schemas["Product"]
	if !ok {
		t.Fatal("record schema missing")
	}
	if record.Properties["id"].Type != "integer" {
		t.Error("record schema missing identity field")
	}
	if record.Properties["price"].Type != "integer" {
		t.Errorf("price type = %q", record.Properties["price"].Type)
	}
	if record.Properties["inStock"].Type != "boolean" {
		t.Errorf("inStock type = %q", record.Properties["inStock"].Type)
	}
	if record.Properties["createdAt"].Format != "date-time" {
		t.Error("timestamp format missing")
	}

	input, ok := spec.Components.Schemas["ProductInput"]
	if !ok {
		t.Fatal("input schema missing")
	}
	if _, ok := input.Properties["id"]; ok {
		t.Error("input schema exposes identity field")
	}
	if len(input.Required) != 1 || input.Required[0] != "title" {
		t.Errorf("required = %v", input.Required)
	}

	if _, ok := spec.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Error("bearer security scheme missing")
	}
}
