package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tcs-sec/vulncases/internal/database"
	"github.com/tcs-sec/vulncases/internal/database/models"
	"github.com/tcs-sec/vulncases/internal/schema"
)

type handlers struct {
	store *database.TestCaseStore
}

var (
	errInvalidJSON  = errors.New("invalid or missing JSON")
	errInvalidShape = errors.New("payload must be an object or array")
)

// decodeItems accepts the three body shapes the API supports: a single
// object, a bare array of objects, or a {"test_cases": [...]} envelope.
func decodeItems(body []byte) ([]map[string]any, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errInvalidJSON
	}
	switch v := payload.(type) {
	case map[string]any:
		if raw, ok := v["test_cases"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, errInvalidShape
			}
			return toItemMaps(list)
		}
		return []map[string]any{v}, nil
	case []any:
		return toItemMaps(v)
	}
	return nil, errInvalidShape
}

func toItemMaps(list []any) ([]map[string]any, error) {
	items := make([]map[string]any, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, errInvalidShape
		}
		items = append(items, m)
	}
	return items, nil
}

func badPayload(c *fiber.Ctx, err error) error {
	msg := "Invalid or missing JSON"
	if errors.Is(err, errInvalidShape) {
		msg = "Payload must be an object or array"
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// readTestCases returns all test cases, optionally filtered by platform.
// An empty result is a 200 with an empty list, never an error.
func (h *handlers) readTestCases(c *fiber.Ctx) error {
	platform := ""
	if q := c.Query("platform"); q != "" {
		p, err := schema.NormalizePlatform(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid platform value"})
		}
		platform = p
	}

	docs, err := h.store.Find(c.Context(), platform)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database read error"})
	}
	if docs == nil {
		docs = []models.TestCase{}
	}
	return c.JSON(fiber.Map{"test_cases": docs})
}

// addTestCases inserts one or more test cases. The whole batch is validated
// before any write, and the insert is all-or-nothing.
func (h *handlers) addTestCases(c *fiber.Ctx) error {
	items, err := decodeItems(c.Body())
	if err != nil {
		return badPayload(c, err)
	}
	if len(items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No test cases in payload"})
	}

	var clean []map[string]any
	if len(items) == 1 {
		doc, verr := schema.Validate(items[0])
		if verr != nil {
			return validationFailed(c, "Validation failed", verr)
		}
		clean = []map[string]any{doc}
	} else {
		docs, verr := schema.ValidateBatch(items)
		if verr != nil {
			return validationFailed(c, "Validation failed", verr)
		}
		clean = docs
	}

	records := make([]models.TestCase, 0, len(clean))
	for _, doc := range clean {
		records = append(records, models.FromMap(doc))
	}

	inserted, err := h.store.Insert(c.Context(), records)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateVulnID) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Duplicate vuln_id detected"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database write error"})
	}

	body := fiber.Map{"inserted": inserted}
	if inserted == 1 {
		body["vuln_id"] = records[0].VulnID
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// updateTestCases applies one or more partial updates keyed by vuln_id.
// Patches are applied independently; unmatched keys land in not_found.
func (h *handlers) updateTestCases(c *fiber.Ctx) error {
	items, err := decodeItems(c.Body())
	if err != nil {
		return badPayload(c, err)
	}
	if len(items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No test cases in payload"})
	}

	patches := make([]database.Patch, 0, len(items))
	for i, item := range items {
		vulnID, fields, verr := schema.ValidatePatch(item)
		if verr != nil {
			ferrs, _ := verr.(schema.Errors)
			if len(items) > 1 {
				ferrs = prefixFields(ferrs, i)
			}
			return validationFailed(c, "Validation failed for update", ferrs)
		}
		patches = append(patches, database.Patch{VulnID: vulnID, Fields: fields})
	}

	res, err := h.store.BatchUpdate(c.Context(), patches)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database update error"})
	}
	return c.JSON(res)
}

// deleteTestCases removes test cases by vuln_id. The body may be a single
// {"vuln_id": ...}, a {"vuln_ids": [...]} set, a {"test_cases": [...]}
// envelope, or a bare array of ids or objects.
func (h *handlers) deleteTestCases(c *fiber.Ctx) error {
	var payload any
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or missing JSON"})
	}

	ids := collectVulnIDs(payload)
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No vuln_ids found to delete"})
	}

	count, err := h.store.Delete(c.Context(), ids)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database delete error"})
	}
	return c.JSON(fiber.Map{"deleted_count": count})
}

func collectVulnIDs(payload any) []string {
	var ids []string
	appendID := func(e any) {
		switch v := e.(type) {
		case string:
			if v != "" {
				ids = append(ids, v)
			}
		case map[string]any:
			if id, ok := v["vuln_id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}

	switch v := payload.(type) {
	case map[string]any:
		if raw, ok := v["vuln_ids"].([]any); ok {
			for _, e := range raw {
				appendID(e)
			}
			return ids
		}
		if raw, ok := v["test_cases"].([]any); ok {
			for _, e := range raw {
				appendID(e)
			}
			return ids
		}
		appendID(v)
	case []any:
		for _, e := range v {
			appendID(e)
		}
	}
	return ids
}

// health pings the store. 200 when reachable, 503 otherwise.
func (h *handlers) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func validationFailed(c *fiber.Ctx, title string, errs error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   title,
		"message": errs,
	})
}

func prefixFields(errs schema.Errors, idx int) schema.Errors {
	out := make(schema.Errors, len(errs))
	for i, fe := range errs {
		out[i] = schema.FieldError{
			Field:   "test_cases[" + strconv.Itoa(idx) + "]." + fe.Field,
			Message: fe.Message,
		}
	}
	return out
}
