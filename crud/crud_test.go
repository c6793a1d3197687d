package crud_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/adapters/jsonstore"
	"github.com/schemasmith/schemasmith/auth"
	"github.com/schemasmith/schemasmith/crud"
	"github.com/schemasmith/schemasmith/dataaccess"
	"github.com/schemasmith/schemasmith/domain/model"
)

// fixture wires a synthesizer against a real SQLite file with a products
// table, the way a successful pipeline run would leave things.
type fixture struct {
	store      *jsonstore.Store
	handles    *dataaccess.Manager
	dispatcher *crud.Dispatcher
	synth      *crud.Synthesizer
	tokens     *auth.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "app.db")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		ownerId TEXT,
		createdAt DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	store, err := jsonstore.New(filepath.Join(dir, "models"))
	if err != nil {
		t.Fatal(err)
	}

	handles := dataaccess.NewManager("sqlite3", dsn, zerolog.Nop())
	handles.CloseGrace = 0
	t.Cleanup(func() { handles.Close() })
	if err := handles.Swap(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	tokens := auth.NewTokenService("test-secret", time.Hour)
	dispatcher := crud.NewDispatcher()
	synth := crud.NewSynthesizer(store, handles, dispatcher, tokens, nil, zerolog.Nop(), false)

	return &fixture{store: store, handles: handles, dispatcher: dispatcher, synth: synth, tokens: tokens}
}

func (f *fixture) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken("user-1", role)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (f *fixture) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.dispatcher.ServeHTTP(rec, req)
	return rec
}

func productDef() model.Definition {
	return model.New("Product",
		[]model.Field{{Name: "title", Type: model.FieldTypeString, Required: true}},
		"ownerId",
		map[string][]string{"ADMIN": {"all"}, "VIEWER": {"read"}})
}

func TestMountAndCRUDLifecycle(t *testing.T) {
	f := newFixture(t)
	if err := f.synth.Mount(productDef()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	admin := f.token(t, "ADMIN")

	rec := f.request(t, http.MethodGet, "/product", admin, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodPost, "/product", admin, `{"title":"Pen"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created["title"] != "Pen" {
		t.Errorf("created = %v", created)
	}
	if created["ownerId"] != "user-1" {
		t.Errorf("owner field not injected: %v", created)
	}
	if created["createdAt"] == nil {
		t.Errorf("timestamp default missing: %v", created)
	}

	rec = f.request(t, http.MethodGet, "/Product/1", admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get by id (case-insensitive base): status %d", rec.Code)
	}

	rec = f.request(t, http.MethodPut, "/product/1", admin, `{"title":"Pencil"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated map[string]any
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated["title"] != "Pencil" || updated["ownerId"] != "user-1" {
		t.Errorf("updated = %v", updated)
	}

	rec = f.request(t, http.MethodDelete, "/product/1", admin, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	// A missing row is a 200 null body, matching a pass-through of the
	// store's empty result rather than an error.
	rec = f.request(t, http.MethodGet, "/product/1", admin, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get after delete: status %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("get after delete: body %q, want null", body)
	}
	rec = f.request(t, http.MethodGet, "/product/999", admin, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get unknown id: status %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("get unknown id: body %q, want null", body)
	}
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	if err := f.synth.Mount(productDef()); err != nil {
		t.Fatal(err)
	}
	viewer := f.token(t, "VIEWER")
	nobody := f.token(t, "GUEST")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"viewer can read", http.MethodGet, "/product", viewer, "", http.StatusOK},
		{"viewer cannot create", http.MethodPost, "/product", viewer, `{"title":"x"}`, http.StatusForbidden},
		{"viewer cannot delete", http.MethodDelete, "/product/1", viewer, "", http.StatusForbidden},
		{"unknown role denied", http.MethodGet, "/product", nobody, "", http.StatusForbidden},
		{"no token", http.MethodGet, "/product", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.request(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestDispatcherUnknownPaths(t *testing.T) {
	f := newFixture(t)
	if err := f.synth.Mount(productDef()); err != nil {
		t.Fatal(err)
	}
	admin := f.token(t, "ADMIN")

	if rec := f.request(t, http.MethodGet, "/orders", admin, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unmounted base: status %d", rec.Code)
	}
	if rec := f.request(t, http.MethodGet, "/product/abc", admin, ""); rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id: status %d", rec.Code)
	}
}

func TestCreateRejectsBadJSON(t *testing.T) {
	f := newFixture(t)
	if err := f.synth.Mount(productDef()); err != nil {
		t.Fatal(err)
	}
	rec := f.request(t, http.MethodPost, "/product", f.token(t, "ADMIN"), "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMountSkipsUnresolvableEntity(t *testing.T) {
	f := newFixture(t)
	def := model.New("Ghost", []model.Field{{Name: "x", Type: model.FieldTypeString}}, "", nil)

	if err := f.synth.Mount(def); err != nil {
		t.Fatalf("Mount of unresolvable entity must not error: %v", err)
	}
	if f.dispatcher.Has("ghost") {
		t.Error("unresolvable entity was mounted")
	}
}

func TestUnmount(t *testing.T) {
	f := newFixture(t)
	if err := f.synth.Mount(productDef()); err != nil {
		t.Fatal(err)
	}
	f.synth.Unmount("product")
	if f.dispatcher.Has("product") {
		t.Fatal("unmount left routes in place")
	}
	f.synth.Unmount("product") // no-op on absent

	if rec := f.request(t, http.MethodGet, "/product", f.token(t, "ADMIN"), ""); rec.Code != http.StatusNotFound {
		t.Errorf("status after unmount = %d", rec.Code)
	}
}

func TestReconcileMountsRegisteredDefinitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Put(ctx, productDef()); err != nil {
		t.Fatal(err)
	}

	f.synth.Reconcile(ctx)
	if !f.dispatcher.Has("product") {
		t.Fatal("reconcile did not mount registered entity")
	}

	// Idempotent: a second reconcile keeps the same group working.
	f.synth.Reconcile(ctx)
	if rec := f.request(t, http.MethodGet, "/product", f.token(t, "ADMIN"), ""); rec.Code != http.StatusOK {
		t.Errorf("status after second reconcile = %d", rec.Code)
	}
}
