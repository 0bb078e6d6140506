package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readiness(t *testing.T, checks ...DependencyCheck) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/ready", NewHealthHandler("staffchat", "test", checks...).Ready)
	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestReadyReportsDependencies(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	status, body := readiness(t, DependencyCheck{Name: "postgres", Ping: ok}, DependencyCheck{Name: "redis"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "disabled"}, body["dependencies"])

	status, body = readiness(t, DependencyCheck{Name: "postgres", Ping: ok}, DependencyCheck{Name: "redis", Ping: down})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "unreachable", details["redis"])
}
