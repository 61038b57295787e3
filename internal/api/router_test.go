package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/conduit/conduit/config"
	"github.com/conduit/conduit/internal/api/handlers"
	"github.com/conduit/conduit/internal/core/endpoint"
	"github.com/conduit/conduit/internal/core/schema"
	"github.com/conduit/conduit/internal/core/validation"
	"github.com/conduit/conduit/internal/logging"
	"github.com/conduit/conduit/internal/storage/database"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := database.NewClient(&config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := logging.Discard()
	endpointRepo := endpoint.NewRepository(db)
	schemaService := schema.NewService(schema.NewRepository(db), endpointRepo, validation.NewValidator(), logger)
	endpointService := endpoint.NewService(endpointRepo, schemaService, 16, logger)

	router := NewRouter(
		handlers.NewSchemaHandler(schemaService),
		handlers.NewEndpointHandler(endpointService),
		logger,
	)
	return router.Setup(gin.TestMode)
}

func do(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func createUserSchema(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	w, body := do(t, engine, http.MethodPost, "/api/schemas", `{
		"name": "User",
		"fields": {
			"name": {"type": "String"},
			"age":  {"type": "Number"},
			"tags": {"type": "String", "array": true}
		}
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create schema: %d %s", w.Code, w.Body.String())
	}
	return body["_id"].(string)
}

func adultsEndpoint(schemaID string) map[string]any {
	return map[string]any{
		"name":           "adults",
		"operation":      0,
		"selectedSchema": schemaID,
		"inputs":         []any{map[string]any{"name": "minAge", "type": "Number", "location": "query"}},
		"queries": []any{map[string]any{
			"_id":      "g1",
			"operator": "AND",
			"queries": []any{map[string]any{
				"_id":             "l1",
				"schemaField":     "age",
				"operation":       3,
				"comparisonField": map[string]any{"type": "Input", "value": "Input-minAge"},
			}},
		}},
		"assignments": []any{},
	}
}

func TestHealth(t *testing.T) {
	engine := newTestServer(t)

	w, body := do(t, engine, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health response %d %v", w.Code, body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestEndpointLifecycle(t *testing.T) {
	engine := newTestServer(t)
	schemaID := createUserSchema(t, engine)

	w, created := do(t, engine, http.MethodPost, "/api/custom-endpoints", adultsEndpoint(schemaID))
	if w.Code != http.StatusCreated {
		t.Fatalf("create endpoint: %d %s", w.Code, w.Body.String())
	}
	id := created["_id"].(string)

	w, _ = do(t, engine, http.MethodGet, "/api/custom-endpoints/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get endpoint: %d", w.Code)
	}

	w, list := do(t, engine, http.MethodGet, "/api/custom-endpoints?schema="+schemaID+"&operation=0", nil)
	if w.Code != http.StatusOK || list["total"] != float64(1) {
		t.Errorf("list endpoints: %d %v", w.Code, list)
	}

	w, plan := do(t, engine, http.MethodGet, "/api/custom-endpoints/"+id+"/plan", nil)
	if w.Code != http.StatusOK || plan["filter"] != "((data->'age')::numeric >= $1)" {
		t.Errorf("plan: %d %v", w.Code, plan)
	}

	w, _ = do(t, engine, http.MethodGet, "/api/custom-endpoints/"+id+"/validate", nil)
	if w.Code != http.StatusOK {
		t.Errorf("revalidate: %d %s", w.Code, w.Body.String())
	}

	// The schema is referenced and cannot be removed.
	w, body := do(t, engine, http.MethodDelete, "/api/schemas/"+schemaID, nil)
	if w.Code != http.StatusConflict || body["code"] != "schema_in_use" {
		t.Errorf("delete referenced schema: %d %v", w.Code, body)
	}

	w, _ = do(t, engine, http.MethodDelete, "/api/custom-endpoints/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete endpoint: %d", w.Code)
	}
	w, body = do(t, engine, http.MethodGet, "/api/custom-endpoints/"+id, nil)
	if w.Code != http.StatusNotFound || body["code"] != "not_found" {
		t.Errorf("get deleted endpoint: %d %v", w.Code, body)
	}
}

func TestCreateEndpoint_ValidationEnvelope(t *testing.T) {
	engine := newTestServer(t)
	schemaID := createUserSchema(t, engine)

	draft := adultsEndpoint(schemaID)
	draft["operation"] = 2
	draft["assignments"] = []any{map[string]any{
		"schemaField":     "tags",
		"action":          1,
		"assignmentField": map[string]any{"type": "Custom", "value": 1},
	}}

	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints", draft)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
	if body["code"] != endpoint.CodeIncompatibleAction {
		t.Errorf("unexpected code %v", body["code"])
	}
	details, _ := body["details"].(map[string]any)
	if details["field"] != "tags" {
		t.Errorf("unexpected details %v", details)
	}
}

func TestCreateEndpoint_DuplicateNameConflict(t *testing.T) {
	engine := newTestServer(t)
	schemaID := createUserSchema(t, engine)

	if w, _ := do(t, engine, http.MethodPost, "/api/custom-endpoints", adultsEndpoint(schemaID)); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d", w.Code)
	}
	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints", adultsEndpoint(schemaID))
	if w.Code != http.StatusConflict || body["code"] != endpoint.CodeDuplicateName {
		t.Errorf("expected 409 duplicate_name, got %d %v", w.Code, body)
	}
}

func TestValidateEndpoint_MalformedNode(t *testing.T) {
	engine := newTestServer(t)

	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints/validate", `{
		"name": "x", "operation": 0, "selectedSchema": "s", "inputs": [],
		"queries": [{"_id": "g", "operator": "AND", "queries": [{"_id": "n", "operation": 0}]}]
	}`)
	if w.Code != http.StatusBadRequest || body["code"] != endpoint.CodeMalformedNode {
		t.Errorf("expected malformed_node, got %d %v", w.Code, body)
	}
}

func TestValidateEndpoint_DeepTree(t *testing.T) {
	engine := newTestServer(t)

	var b strings.Builder
	b.WriteString(`{"name":"deep","operation":0,"selectedSchema":"s","inputs":[],"queries":[`)
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, `{"_id":"g%d","operator":"AND","queries":[`, i)
	}
	b.WriteString(strings.Repeat(`]}`, 2000))
	b.WriteString(`]}`)

	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints/validate", b.String())
	if w.Code != http.StatusBadRequest || body["code"] != endpoint.CodeTreeTooLarge {
		t.Errorf("expected tree_too_large, got %d %v", w.Code, body)
	}
}

func TestCreateEndpoint_BodyTooLarge(t *testing.T) {
	engine := newTestServer(t)

	doc := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints", doc)
	if w.Code != http.StatusRequestEntityTooLarge || body["code"] != "body_too_large" {
		t.Errorf("expected 413 body_too_large, got %d %v", w.Code, body)
	}
}

func TestValidateEndpoint_DryRun(t *testing.T) {
	engine := newTestServer(t)
	schemaID := createUserSchema(t, engine)

	w, body := do(t, engine, http.MethodPost, "/api/custom-endpoints/validate", adultsEndpoint(schemaID))
	if w.Code != http.StatusOK || body["valid"] != true {
		t.Fatalf("expected valid draft, got %d %v", w.Code, body)
	}

	_, list := do(t, engine, http.MethodGet, "/api/custom-endpoints", nil)
	if list["total"] != float64(0) {
		t.Errorf("dry run must not persist, list = %v", list)
	}
}

func TestSchemaFields(t *testing.T) {
	engine := newTestServer(t)
	schemaID := createUserSchema(t, engine)

	w, body := do(t, engine, http.MethodGet, "/api/schemas/"+schemaID+"/fields", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fields: %d", w.Code)
	}
	fields, _ := body["fields"].(map[string]any)
	tags, _ := fields["tags"].(map[string]any)
	if tags["array"] != true {
		t.Errorf("expected tags to be an array field, got %v", tags)
	}
}

func TestSchemaCreate_Invalid(t *testing.T) {
	engine := newTestServer(t)

	w, body := do(t, engine, http.MethodPost, "/api/schemas", `{"name": "Bad", "fields": {"_id": {"type": "String"}}}`)
	if w.Code != http.StatusBadRequest || body["code"] != "invalid_schema" {
		t.Errorf("expected invalid_schema, got %d %v", w.Code, body)
	}
}
