// Package schemadoc reads and rewrites the shared schema document: the single
// text artifact describing every entity's storage structure, consumed by the
// external migration and generation toolchain.
//
// Entity blocks have the form
//
//	model Product {
//	  id        Int      @id @default(autoincrement())
//	  title     String
//	  createdAt DateTime @default(now())
//	  updatedAt DateTime @updatedAt
//	}
//
// and are located by structural pattern match on their delimiters, so
// surrounding content (datasource, generator, hand-edited blocks) is
// preserved.
package schemadoc

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/schemasmith/schemasmith/domain/model"
)

// typeNames maps field types to their schema document type names.
var typeNames = map[model.FieldType]string{
	model.FieldTypeString:   "String",
	model.FieldTypeNumber:   "Int",
	model.FieldTypeBoolean:  "Boolean",
	model.FieldTypeDatetime: "DateTime",
}

var generatorBlockRe = regexp.MustCompile(`(?s)generator\s+client\s+\{.*?\}`)

// Editor performs whole-document read-modify-write operations on one schema
// document. Callers must serialize access; the editor does no locking of its
// own.
type Editor struct {
	path string
}

// NewEditor creates an editor for the document at path. The file need not
// exist yet; a missing document reads as empty.
func NewEditor(path string) *Editor {
	return &Editor{path: path}
}

// Path returns the document path.
func (e *Editor) Path() string {
	return e.path
}

// read returns the document contents, treating a missing file as empty.
func (e *Editor) read() string {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (e *Editor) write(doc string) error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}
	if err := os.WriteFile(e.path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write schema document: %w", err)
	}
	return nil
}

// blockPattern matches the named model block: from a line starting with
// "model <name> {" through the first line starting with "}".
func blockPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?ms)^model\s+` + regexp.QuoteMeta(name) + `\s+\{.*?^\}`)
}

// Upsert replaces the named block in place, or appends it with exactly one
// trailing newline when absent.
func (e *Editor) Upsert(name, block string) error {
	doc := e.read()
	re := blockPattern(name)
	trimmed := strings.TrimSpace(block)

	if re.MatchString(doc) {
		doc = re.ReplaceAllString(doc, trimmed)
	} else {
		if doc != "" && !strings.HasSuffix(doc, "\n") {
			doc += "\n"
		}
		doc += trimmed + "\n"
	}

	return e.write(doc)
}

// Remove deletes the named block if present and reports whether the document
// changed.
func (e *Editor) Remove(name string) (bool, error) {
	doc := e.read()
	re := blockPattern(name)

	if !re.MatchString(doc) {
		return false, nil
	}

	doc = re.ReplaceAllString(doc, "")
	doc = strings.ReplaceAll(doc, "\n\n\n", "\n\n")
	return true, e.write(doc)
}

// Block returns the named block's text and whether it exists.
func (e *Editor) Block(name string) (string, bool) {
	doc := e.read()
	match := blockPattern(name).FindString(doc)
	if match == "" {
		return "", false
	}
	return strings.TrimSpace(match), true
}

// Render produces the schema block for a definition: the identity field,
// the user fields in declaration order, then the timestamp fields.
func Render(def model.Definition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "model %s {\n", def.Name)
	b.WriteString("  id        Int      @id @default(autoincrement())\n")

	for _, f := range def.Fields {
		typeName, ok := typeNames[f.Type]
		if !ok {
			typeName = "String"
		}
		line := fmt.Sprintf("  %s %s", f.Name, typeName)
		if !f.Required {
			line += "?"
		}
		if f.Unique {
			line += " @unique"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("  createdAt DateTime @default(now())\n")
	b.WriteString("  updatedAt DateTime @updatedAt\n")
	b.WriteString("}\n")

	return b.String()
}

// WriteBuildCopy renders a transient copy of the document with the generator
// output rewritten to outDir, writes it under a .tmp subdirectory next to the
// document, and returns its path. The copy is not cleaned up automatically.
func (e *Editor) WriteBuildCopy(outDir string) (string, error) {
	doc := e.read()

	escaped := strings.ReplaceAll(outDir, `\`, `\\`)
	outputLine := fmt.Sprintf(`output = "%s"`, escaped)

	replaced := generatorBlockRe.ReplaceAllStringFunc(doc, func(block string) string {
		outputRe := regexp.MustCompile(`(?m)^(\s*)output\s*=.*$`)
		if outputRe.MatchString(block) {
			return outputRe.ReplaceAllString(block, "${1}"+outputLine)
		}
		return strings.TrimSuffix(block, "}") + "  " + outputLine + "\n}"
	})

	tmpDir := filepath.Join(filepath.Dir(e.path), ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("schema.build.%d%s", time.Now().UnixMilli(), filepath.Ext(e.path)))
	if err := os.WriteFile(tmpPath, []byte(replaced), 0o644); err != nil {
		return "", fmt.Errorf("write build schema copy: %w", err)
	}

	return tmpPath, nil
}
