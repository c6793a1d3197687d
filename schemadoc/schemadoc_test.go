package schemadoc

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/schemasmith/schemasmith/domain/model"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	return NewEditor(filepath.Join(t.TempDir(), "app.schema"))
}

func widgetDef(fields ...model.Field) model.Definition {
	if len(fields) == 0 {
		fields = []model.Field{{Name: "title", Type: model.FieldTypeString, Required: true}}
	}
	return model.New("Widget", fields, "", nil)
}

func TestRender(t *testing.T) {
	def := model.New("Product", []model.Field{
		{Name: "title", Type: model.FieldTypeString, Required: true},
		{Name: "sku", Type: model.FieldTypeString, Required: true, Unique: true},
		{Name: "price", Type: model.FieldTypeNumber},
		{Name: "active", Type: model.FieldTypeBoolean},
		{Name: "soldAt", Type: model.FieldTypeDatetime},
	}, "", nil)

	block := Render(def)

	wantLines := []string{
		"model Product {",
		"id        Int      @id @default(autoincrement())",
		"title String",
		"sku String @unique",
		"price Int?",
		"active Boolean?",
		"soldAt DateTime?",
		"createdAt DateTime @default(now())",
		"updatedAt DateTime @updatedAt",
		"}",
	}
	for _, line := range wantLines {
		if !strings.Contains(block, line) {
			t.Errorf("Render() missing line %q in:\n%s", line, block)
		}
	}
}

func TestEditor_Upsert_AppendsToMissingDocument(t *testing.T) {
	e := newTestEditor(t)

	if err := e.Upsert("Widget", Render(widgetDef())); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	data, err := os.ReadFile(e.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	doc := string(data)
	if !strings.Contains(doc, "model Widget {") {
		t.Errorf("document missing block:\n%s", doc)
	}
	if !strings.HasSuffix(doc, "}\n") {
		t.Errorf("document should end with exactly one trailing newline, got %q", doc[len(doc)-4:])
	}
}

func TestEditor_Upsert_RoundTrip(t *testing.T) {
	e := newTestEditor(t)

	if err := e.Upsert("Widget", Render(widgetDef())); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second := widgetDef(
		model.Field{Name: "title", Type: model.FieldTypeString, Required: true},
		model.Field{Name: "color", Type: model.FieldTypeString},
	)
	if err := e.Upsert("Widget", Render(second)); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	data, _ := os.ReadFile(e.Path())
	doc := string(data)

	if got := strings.Count(doc, "model Widget {"); got != 1 {
		t.Fatalf("document has %d Widget blocks, want 1:\n%s", got, doc)
	}
	if !strings.Contains(doc, "color String?") {
		t.Errorf("document should contain the second block's field:\n%s", doc)
	}
}

func TestEditor_Upsert_PreservesSurroundingContent(t *testing.T) {
	e := newTestEditor(t)

	header := "datasource db {\n  provider = \"sqlite\"\n  url      = \"file:app.db\"\n}\n\nmodel Gadget {\n  id Int @id\n}\n"
	if err := os.WriteFile(e.Path(), []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.Upsert("Gadget", "model Gadget {\n  id Int @id\n  name String\n}\n"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	data, _ := os.ReadFile(e.Path())
	doc := string(data)
	if !strings.Contains(doc, "datasource db {") {
		t.Errorf("surrounding content lost:\n%s", doc)
	}
	if !strings.Contains(doc, "name String") {
		t.Errorf("block not replaced:\n%s", doc)
	}
}

func TestEditor_Remove(t *testing.T) {
	e := newTestEditor(t)

	if err := e.Upsert("Widget", Render(widgetDef())); err != nil {
		t.Fatal(err)
	}
	if err := e.Upsert("Gadget", "model Gadget {\n  id Int @id\n}\n"); err != nil {
		t.Fatal(err)
	}

	changed, err := e.Remove("Widget")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !changed {
		t.Error("Remove() = false, want true")
	}

	data, _ := os.ReadFile(e.Path())
	doc := string(data)
	if strings.Contains(doc, "model Widget") {
		t.Errorf("Widget block still present:\n%s", doc)
	}
	if !strings.Contains(doc, "model Gadget {") {
		t.Errorf("unrelated block removed:\n%s", doc)
	}

	// Removing again is a no-op.
	changed, err = e.Remove("Widget")
	if err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if changed {
		t.Error("second Remove() = true, want false")
	}
}

func TestEditor_Block(t *testing.T) {
	e := newTestEditor(t)

	if _, ok := e.Block("Widget"); ok {
		t.Error("Block() on empty document should report absent")
	}

	if err := e.Upsert("Widget", Render(widgetDef())); err != nil {
		t.Fatal(err)
	}

	block, ok := e.Block("Widget")
	if !ok {
		t.Fatal("Block() should find upserted block")
	}
	if !strings.HasPrefix(block, "model Widget {") || !strings.HasSuffix(block, "}") {
		t.Errorf("Block() = %q, want full block", block)
	}
}

func TestEditor_WriteBuildCopy_RewritesOutput(t *testing.T) {
	e := newTestEditor(t)

	doc := "generator client {\n  provider = \"client-gen\"\n  output = \"../old\"\n}\n\nmodel Widget {\n  id Int @id\n}\n"
	if err := os.WriteFile(e.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tmpPath, err := e.WriteBuildCopy("/builds/12345")
	if err != nil {
		t.Fatalf("WriteBuildCopy() error = %v", err)
	}

	if filepath.Base(filepath.Dir(tmpPath)) != ".tmp" {
		t.Errorf("build copy written to %q, want .tmp subdirectory", tmpPath)
	}

	data, _ := os.ReadFile(tmpPath)
	copy := string(data)
	if !strings.Contains(copy, `output = "/builds/12345"`) {
		t.Errorf("output not rewritten:\n%s", copy)
	}
	if strings.Contains(copy, "../old") {
		t.Errorf("old output still present:\n%s", copy)
	}
	if !strings.Contains(copy, "model Widget {") {
		t.Errorf("model blocks must carry over:\n%s", copy)
	}

	// Original document untouched.
	orig, _ := os.ReadFile(e.Path())
	if !strings.Contains(string(orig), "../old") {
		t.Error("WriteBuildCopy() must not modify the source document")
	}
}

func TestEditor_WriteBuildCopy_InsertsOutputWhenMissing(t *testing.T) {
	e := newTestEditor(t)

	doc := "generator client {\n  provider = \"client-gen\"\n}\n"
	if err := os.WriteFile(e.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tmpPath, err := e.WriteBuildCopy("/builds/9")
	if err != nil {
		t.Fatalf("WriteBuildCopy() error = %v", err)
	}

	data, _ := os.ReadFile(tmpPath)
	matched, _ := regexp.Match(`output = "/builds/9"`, data)
	if !matched {
		t.Errorf("output line not inserted:\n%s", data)
	}
}
