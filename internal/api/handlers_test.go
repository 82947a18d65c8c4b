package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcs-sec/vulncases/internal/api"
	"github.com/tcs-sec/vulncases/internal/config"
	"github.com/tcs-sec/vulncases/internal/database"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := database.NewTestCaseStore(db)
	require.NoError(t, store.EnsureSchema())

	cfg, err := config.Load("")
	require.NoError(t, err)
	return api.NewServer(cfg, store)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestPostTestCases(t *testing.T) {
	t.Run("single record normalized on insert", func(t *testing.T) {
		app := newTestApp(t)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"vuln_id":   "T1",
			"vuln_name": "X",
			"platform":  "llm",
			"Automated": "yes",
		})

		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, float64(1), body["inserted"])
		assert.Equal(t, "T1", body["vuln_id"])

		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases?platform=LLM", nil)
		require.Equal(t, http.StatusOK, status)
		cases := body["test_cases"].([]any)
		require.Len(t, cases, 1)
		got := cases[0].(map[string]any)
		assert.Equal(t, "LLM", got["platform"])
		assert.Equal(t, true, got["Automated"])
	})

	t.Run("missing required field is 400 and nothing written", func(t *testing.T) {
		app := newTestApp(t)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"vuln_name": "X",
			"platform":  "web",
		})

		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Validation failed", body["error"])

		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, body["test_cases"])
	})

	t.Run("invalid platform is 400", func(t *testing.T) {
		app := newTestApp(t)

		status, _ := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"vuln_id":   "T1",
			"vuln_name": "X",
			"platform":  "desktop",
		})

		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("duplicate vuln_id is 409 without a second document", func(t *testing.T) {
		app := newTestApp(t)

		rec := map[string]any{"vuln_id": "T1", "vuln_name": "X", "platform": "web"}
		status, _ := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", rec)
		require.Equal(t, http.StatusCreated, status)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", rec)
		require.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "Duplicate vuln_id detected", body["error"])

		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body["test_cases"], 1)
	})

	t.Run("batch envelope inserts all", func(t *testing.T) {
		app := newTestApp(t)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"test_cases": []map[string]any{
				{"vuln_id": "T1", "vuln_name": "A", "platform": "web"},
				{"vuln_id": "T2", "vuln_name": "B", "platform": "API"},
				{"vuln_id": "T3", "vuln_name": "C", "platform": "mobile"},
			},
		})

		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, float64(3), body["inserted"])
		assert.NotContains(t, body, "vuln_id")
	})

	t.Run("one invalid element fails whole batch unpersisted", func(t *testing.T) {
		app := newTestApp(t)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"test_cases": []map[string]any{
				{"vuln_id": "T1", "vuln_name": "A", "platform": "web"},
				{"vuln_id": "T2", "vuln_name": "B", "platform": "nope"},
				{"vuln_id": "T3", "vuln_name": "C", "platform": "mobile"},
			},
		})

		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Validation failed", body["error"])

		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, body["test_cases"])
	})

	t.Run("bare array body accepted", func(t *testing.T) {
		app := newTestApp(t)

		status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", []map[string]any{
			{"vuln_id": "T1", "vuln_name": "A", "platform": "web"},
			{"vuln_id": "T2", "vuln_name": "B", "platform": "API"},
		})

		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, float64(2), body["inserted"])
	})

	t.Run("malformed JSON is 400", func(t *testing.T) {
		app := newTestApp(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/test_cases", bytes.NewReader([]byte("{nope")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetTestCases(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
		"test_cases": []map[string]any{
			{"vuln_id": "T1", "vuln_name": "A", "platform": "web"},
			{"vuln_id": "T2", "vuln_name": "B", "platform": "API"},
		},
	})
	require.Equal(t, http.StatusCreated, status)

	t.Run("platform filter is case-insensitive", func(t *testing.T) {
		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases?platform=api", nil)
		require.Equal(t, http.StatusOK, status)
		cases := body["test_cases"].([]any)
		require.Len(t, cases, 1)
		assert.Equal(t, "T2", cases[0].(map[string]any)["vuln_id"])
	})

	t.Run("garbage platform value is 400", func(t *testing.T) {
		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases?platform=desktop", nil)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid platform value", body["error"])
	})

	t.Run("empty collection is 200 with empty list", func(t *testing.T) {
		empty := newTestApp(t)
		status, body := doJSON(t, empty, http.MethodGet, "/api/v1/test_cases", nil)
		require.Equal(t, http.StatusOK, status)
		assert.NotNil(t, body["test_cases"])
		assert.Empty(t, body["test_cases"])
	})
}

func TestPutTestCases(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
		"vuln_id":     "T1",
		"vuln_name":   "X",
		"platform":    "web",
		"description": "original",
	})
	require.Equal(t, http.StatusCreated, status)

	t.Run("partial update updates only supplied fields", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPut, "/api/v1/test_cases", map[string]any{
			"vuln_id":    "T1",
			"cvss_score": 7.5,
		})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["updated"])
		assert.Empty(t, body["not_found"])

		status, body = doJSON(t, app, http.MethodGet, "/api/v1/test_cases", nil)
		require.Equal(t, http.StatusOK, status)
		got := body["test_cases"].([]any)[0].(map[string]any)
		assert.Equal(t, 7.5, got["cvss_score"])
		assert.Equal(t, "original", got["description"])
		assert.Equal(t, "X", got["vuln_name"])
	})

	t.Run("unknown key collected in not_found", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPut, "/api/v1/test_cases", map[string]any{
			"vuln_id":    "ZZZ",
			"cvss_score": 1.0,
		})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), body["updated"])
		assert.Equal(t, []any{"ZZZ"}, body["not_found"])
	})

	t.Run("batch patches applied independently", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPut, "/api/v1/test_cases", map[string]any{
			"test_cases": []map[string]any{
				{"vuln_id": "T1", "Automated": "no"},
				{"vuln_id": "ZZZ", "description": "nope"},
			},
		})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["updated"])
		assert.Equal(t, []any{"ZZZ"}, body["not_found"])
	})

	t.Run("patch without vuln_id is 400", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPut, "/api/v1/test_cases", map[string]any{
			"cvss_score": 5.0,
		})

		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Validation failed for update", body["error"])
	})

	t.Run("invalid supplied field is 400", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPut, "/api/v1/test_cases", map[string]any{
			"vuln_id":  "T1",
			"platform": "desktop",
		})

		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestDeleteTestCases(t *testing.T) {
	seed := func(t *testing.T) *fiber.App {
		app := newTestApp(t)
		status, _ := doJSON(t, app, http.MethodPost, "/api/v1/test_cases", map[string]any{
			"test_cases": []map[string]any{
				{"vuln_id": "T1", "vuln_name": "A", "platform": "web"},
				{"vuln_id": "T2", "vuln_name": "B", "platform": "API"},
			},
		})
		require.Equal(t, http.StatusCreated, status)
		return app
	}

	t.Run("single vuln_id", func(t *testing.T) {
		app := seed(t)

		status, body := doJSON(t, app, http.MethodDelete, "/api/v1/test_cases", map[string]any{"vuln_id": "T1"})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["deleted_count"])
	})

	t.Run("vuln_ids set with missing members", func(t *testing.T) {
		app := seed(t)

		status, body := doJSON(t, app, http.MethodDelete, "/api/v1/test_cases", map[string]any{
			"vuln_ids": []string{"T1", "T2", "ZZZ"},
		})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), body["deleted_count"])
	})

	t.Run("deleting a non-existent key is not an error", func(t *testing.T) {
		app := seed(t)

		status, body := doJSON(t, app, http.MethodDelete, "/api/v1/test_cases", map[string]any{"vuln_id": "ZZZ"})

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), body["deleted_count"])
	})

	t.Run("no resolvable ids is 400", func(t *testing.T) {
		app := seed(t)

		status, body := doJSON(t, app, http.MethodDelete, "/api/v1/test_cases", map[string]any{"other": true})

		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "No vuln_ids found to delete", body["error"])
	})
}
