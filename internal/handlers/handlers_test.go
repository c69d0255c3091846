package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/router"
	"bakery_ops_backend/internal/testutil"
	"bakery_ops_backend/pkg/utils"
)

const (
	bakeryA = "0190a6a4-0000-7000-8000-00000000000a"
	bakeryB = "0190a6a4-0000-7000-8000-00000000000b"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.ConfigureJWT("handler-test-secret", "bakery-ops-test")
	os.Exit(m.Run())
}

type api struct {
	engine *gin.Engine
	hub    *events.Hub
}

func newAPI(t *testing.T) *api {
	t.Helper()
	hub := events.NewHub(32)
	engine := gin.New()
	err := router.Setup(context.Background(), engine, router.Dependencies{
		DB:        testutil.NewDB(t),
		Dialect:   database.SQLite,
		TxRetries: database.DefaultTxRetries,
		Metrics:   metrics.New(),
		Events:    hub,
	})
	require.NoError(t, err)
	return &api{engine: engine, hub: hub}
}

func token(t *testing.T, userID, bakeryID string, admin bool) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(userID, bakeryID, "owner", admin, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request and decodes the JSON response into a map.
func (a *api) do(t *testing.T, tok, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error envelope: %v", body)
	code, _ := e["code"].(string)
	return code
}

func (a *api) createIngredient(t *testing.T, tok, name, unit, cost string) string {
	t.Helper()
	status, body := a.do(t, tok, http.MethodPost, "/api/v1/ingredients", gin.H{"name": name, "unit": unit, "cost_per_unit": cost})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	return body["id"].(string)
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)

	status, body := a.do(t, "", http.MethodGet, "/api/v1/ingredients", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, utils.ErrCodeUnauthorized, errorCode(t, body))

	status, _ = a.do(t, "not-a-jwt", http.MethodGet, "/api/v1/ingredients", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = a.do(t, token(t, "u1", "", false), http.MethodGet, "/api/v1/ingredients", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, utils.ErrCodeForbidden, errorCode(t, body))

	status, _ = a.do(t, token(t, "u1", bakeryA, false), http.MethodGet, "/api/v1/ingredients", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLedgerEndpoints(t *testing.T) {
	a := newAPI(t)
	owner := token(t, "u1", bakeryA, false)
	flour := a.createIngredient(t, owner, "Flour", "g", "0.002")
	base := "/api/v1/ingredients/" + flour

	status, body := a.do(t, owner, http.MethodPost, base+"/receive", gin.H{
		"quantity": "1000", "unit": "g", "cost_per_unit": "0.002", "purchased_at": "2026-01-01T08:00:00Z",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	assert.Equal(t, "1000", body["current_qty"])

	status, body = a.do(t, owner, http.MethodPost, base+"/receive", gin.H{
		"quantity": "1000", "unit": "g", "cost_per_unit": "0.0025", "purchased_at": "2026-01-02T08:00:00Z",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	secondLot := body["lot"].(map[string]interface{})["id"].(string)

	status, body = a.do(t, owner, http.MethodPost, base+"/consume", gin.H{"quantity": "1.2", "unit": "kg"})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "800", body["current_qty"])
	assert.Len(t, body["allocations"], 2)

	t.Run("overdraft is rejected with shortages", func(t *testing.T) {
		status, body := a.do(t, owner, http.MethodPost, base+"/consume", gin.H{"quantity": "5000", "unit": "g"})
		require.Equal(t, http.StatusConflict, status)
		assert.Equal(t, utils.ErrCodeInsufficientStock, errorCode(t, body))
		data := body["error"].(map[string]interface{})["data"].(map[string]interface{})
		shortages := data["shortages"].([]interface{})
		require.Len(t, shortages, 1)
		assert.Equal(t, "4200", shortages[0].(map[string]interface{})["shortfall"])
	})

	t.Run("unconvertible unit", func(t *testing.T) {
		status, body := a.do(t, owner, http.MethodPost, base+"/consume", gin.H{"quantity": "1", "unit": "each"})
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, utils.ErrCodeConversionUnavailable, errorCode(t, body))
	})

	t.Run("adjustment below zero", func(t *testing.T) {
		status, body := a.do(t, owner, http.MethodPost, "/api/v1/lots/"+secondLot+"/adjust", gin.H{"delta": "-900", "unit": "g"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, utils.ErrCodeInvalidAdjustment, errorCode(t, body))
	})

	status, body = a.do(t, owner, http.MethodGet, base+"/lots?active=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = a.do(t, owner, http.MethodGet, base+"/stock", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "800", body["current_qty"])

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/inventory/transactions?type=USE&ingredient_id="+flour, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, _ = a.do(t, owner, http.MethodGet, "/api/v1/inventory/transactions?date_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/inventory/report", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2", body["total_value"])
}

func TestTenantIsolation(t *testing.T) {
	a := newAPI(t)
	flour := a.createIngredient(t, token(t, "u1", bakeryA, false), "Flour", "g", "0.002")
	other := token(t, "u2", bakeryB, false)

	status, body := a.do(t, other, http.MethodGet, "/api/v1/ingredients/"+flour, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, utils.ErrCodeNotFound, errorCode(t, body))

	status, _ = a.do(t, other, http.MethodPost, "/api/v1/ingredients/"+flour+"/receive", gin.H{"quantity": "1", "unit": "g", "cost_per_unit": "1"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = a.do(t, other, http.MethodGet, "/api/v1/ingredients", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestUnitEndpoints(t *testing.T) {
	a := newAPI(t)
	owner := token(t, "u1", bakeryA, false)
	admin := token(t, "root", "", true)

	status, body := a.do(t, owner, http.MethodPost, "/api/v1/units/convert", gin.H{"quantity": "2", "from_unit": "kg", "to_unit": "g"})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "2000", body["result"])

	conversion := gin.H{"from_unit": "each", "to_unit": "dozen", "factor": "0.0833333333", "category": "count"}
	status, _ = a.do(t, owner, http.MethodPost, "/api/v1/units/conversions", conversion)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = a.do(t, admin, http.MethodPost, "/api/v1/units/conversions", conversion)
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/units/conversions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["conversions"])
}

func TestProductionEndpoints(t *testing.T) {
	a := newAPI(t)
	owner := token(t, "u1", bakeryA, false)
	flour := a.createIngredient(t, owner, "Flour", "g", "0.002")

	status, body := a.do(t, owner, http.MethodPost, "/api/v1/recipes", gin.H{
		"name": "Roll", "yield_qty": "6", "yield_unit": "each",
		"sections": []gin.H{{"name": "Dough", "ingredients": []gin.H{{"ingredient_id": flour, "quantity": "300", "unit": "g"}}}},
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	roll := body["id"].(string)
	assert.Equal(t, "0.6", body["total_cost"])

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/recipes/"+roll+"/scale?factor=2", nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "12", body["scaled_yield_qty"])

	status, _ = a.do(t, owner, http.MethodGet, "/api/v1/recipes/"+roll+"/scale?factor=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.do(t, owner, http.MethodPost, "/api/v1/production-sheets", gin.H{
		"name": "Morning", "recipes": []gin.H{{"recipe_id": roll, "scale": "2"}},
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	sheet := "/api/v1/production-sheets/" + body["id"].(string)

	status, body = a.do(t, owner, http.MethodPost, sheet+"/complete", nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.ErrCodeInsufficientStock, errorCode(t, body))

	status, _ = a.do(t, owner, http.MethodPost, "/api/v1/ingredients/"+flour+"/receive", gin.H{"quantity": "1", "unit": "kg", "cost_per_unit": "2"})
	require.Equal(t, http.StatusCreated, status)

	status, body = a.do(t, owner, http.MethodGet, sheet+"/preview", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PENDING", body["status"])
	assert.Nil(t, body["shortages"])

	status, body = a.do(t, owner, http.MethodPost, sheet+"/complete", nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, true, body["sheet"].(map[string]interface{})["completed"])

	status, body = a.do(t, owner, http.MethodPost, sheet+"/complete", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.ErrCodeAlreadyCompleted, errorCode(t, body))

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/ingredients/"+flour+"/stock", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "400", body["current_qty"])

	status, _ = a.do(t, owner, http.MethodDelete, sheet, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/production-sheets?status=completed", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = a.do(t, owner, http.MethodGet, "/api/v1/snapshots?entity_type=recipe&entity_id="+roll, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.EqualValues(t, 1, body["total"])
}

func TestInventoryFeed(t *testing.T) {
	a := newAPI(t)
	owner := token(t, "u1", bakeryA, false)
	flour := a.createIngredient(t, owner, "Flour", "g", "0.002")

	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+owner)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws/inventory", header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return a.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Another bakery's activity must not reach this feed.
	other := token(t, "u2", bakeryB, false)
	theirs := a.createIngredient(t, other, "Sugar", "g", "0.001")
	status, _ := a.do(t, other, http.MethodPost, "/api/v1/ingredients/"+theirs+"/receive", gin.H{"quantity": "10", "unit": "g", "cost_per_unit": "0.001"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = a.do(t, owner, http.MethodPost, "/api/v1/ingredients/"+flour+"/receive", gin.H{"quantity": "250", "unit": "g", "cost_per_unit": "0.002"})
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypeLotReceived, ev.Type)
	assert.Equal(t, bakeryA, ev.BakeryID)
	assert.Equal(t, flour, ev.IngredientID)
	require.NotNil(t, ev.CurrentQty)
	testutil.AssertDecimal(t, "250", *ev.CurrentQty)

	conn.Close()
	require.Eventually(t, func() bool { return a.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
