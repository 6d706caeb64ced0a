package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/schema"
	"github.com/dev7ch/api/internal/service"
	"github.com/dev7ch/api/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	require.NoError(t, db.AutoMigrate(
		&domain.Collection{}, &domain.Field{}, &domain.Relation{},
		&domain.Activity{}, &domain.Revision{},
	))
	require.NoError(t, db.Exec("CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, price INTEGER)").Error)

	intp := func(v int) *int { return &v }
	require.NoError(t, db.Create(&domain.Collection{Collection: "products", Managed: true}).Error)
	require.NoError(t, db.Create(&[]domain.Field{
		{Collection: "products", Field: "id", Type: domain.TypeInteger, Interface: "primary-key", Sort: intp(1)},
		{Collection: "products", Field: "name", Type: domain.TypeString, Required: true, Sort: intp(2)},
		{Collection: "products", Field: "price", Type: domain.TypeInteger, Sort: intp(3)},
	}).Error)

	schemaRepo := repository.NewSchemaRepository(db)
	itemRepo := repository.NewItemRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	registry := schema.NewRegistry(schemaRepo)
	require.NoError(t, registry.Reload(context.Background()))

	relations := service.NewRelationService(registry, itemRepo, 2)
	activity := service.NewActivityService(db, activityRepo, nil)
	items := service.NewItemService(db, registry, relations, activity, itemRepo, nil, nil)

	jwtManager := jwt.NewManager("test-secret")
	h := NewItemsHandler(items, activity)

	router := gin.New()
	router.Use(middleware.Auth(jwtManager))
	router.GET("/items/:collection", h.ListItems)
	router.POST("/items/:collection", h.CreateItem)
	router.GET("/items/:collection/:id", h.GetItem)
	router.PATCH("/items/:collection/:id", h.UpdateItem)
	router.DELETE("/items/:collection/:id", h.DeleteItem)
	return router, jwtManager
}

func authed(t *testing.T, m *jwt.Manager, req *http.Request) {
	t.Helper()
	token, err := m.Sign(7, false, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestItemsHandler_CreateAndGet(t *testing.T) {
	router, jwtManager := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/items/products",
		strings.NewReader(`{"name":"Widget","price":100}`))
	authed(t, jwtManager, req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data domain.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.EqualValues(t, 1, created.Data["id"])

	req = httptest.NewRequest(http.MethodGet, "/items/products/1?meta=*", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Data domain.Record `json:"data"`
		Meta *struct {
			Collection string `json:"collection"`
			Type       string `json:"type"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Widget", got.Data["name"])
	require.NotNil(t, got.Meta)
	assert.Equal(t, "products", got.Meta.Collection)
	assert.Equal(t, "item", got.Meta.Type)
}

func TestItemsHandler_ListWithMeta(t *testing.T) {
	router, jwtManager := setupRouter(t)

	for _, body := range []string{`{"name":"A"}`, `{"name":"B"}`} {
		req := httptest.NewRequest(http.MethodPost, "/items/products", strings.NewReader(body))
		authed(t, jwtManager, req)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/items/products?meta=*&fields=id,name", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Data []domain.Record `json:"data"`
		Meta *struct {
			ResultCount int `json:"result_count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Data, 2)
	require.NotNil(t, got.Meta)
	assert.Equal(t, 2, got.Meta.ResultCount)
}

func TestItemsHandler_ErrorCodes(t *testing.T) {
	router, jwtManager := setupRouter(t)

	// anonymous mutation is forbidden
	req := httptest.NewRequest(http.MethodPost, "/items/products", strings.NewReader(`{"name":"X"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// unknown item
	req = httptest.NewRequest(http.MethodGet, "/items/products/999", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// invalid payload aggregates violations
	req = httptest.NewRequest(http.MethodPost, "/items/products",
		strings.NewReader(`{"bogus":1,"price":"NaN"}`))
	authed(t, jwtManager, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp struct {
		Error struct {
			Code       string `json:"code"`
			Violations []struct {
				Field string `json:"field"`
			} `json:"violations"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "VALIDATION_FAILED", errResp.Error.Code)
	assert.Len(t, errResp.Error.Violations, 3)

	// unmanaged collection mutations are unprocessable
	req = httptest.NewRequest(http.MethodPost, "/items/ghost", strings.NewReader(`{"a":1}`))
	authed(t, jwtManager, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// expired token is rejected outright
	token, err := jwtManager.Sign(7, false, -time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/items/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestItemsHandler_DeleteReturnsNoContent(t *testing.T) {
	router, jwtManager := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/items/products", strings.NewReader(`{"name":"X"}`))
	authed(t, jwtManager, req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/items/products/1", nil)
	authed(t, jwtManager, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/items/products/1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
