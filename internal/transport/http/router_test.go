package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sweetshop/sweet-shop/internal/handlers"
	authmw "github.com/sweetshop/sweet-shop/internal/middleware/auth"
	"github.com/sweetshop/sweet-shop/internal/models"
	"github.com/sweetshop/sweet-shop/internal/repo"
	"github.com/sweetshop/sweet-shop/internal/service"
	"github.com/sweetshop/sweet-shop/internal/token"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Sweet{}))

	store := repo.New(db)
	tokens := token.NewService([]byte("test-secret"))

	e := echo.New()
	Register(e, &Deps{
		Guard:        &authmw.Guard{Repo: store, Tokens: tokens},
		AuthHandler:  &handlers.AuthHandler{Auth: &service.AuthService{Repo: store, Tokens: tokens}},
		SweetHandler: &handlers.SweetHandler{Inventory: &service.InventoryService{Repo: store}, Index: "sweets"},
	})

	return &testEnv{T: t, E: e, DB: db}
}

func (env *testEnv) do(method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// registerAndLogin creates a user and returns its bearer token. The
// first registered user in a fresh env is the admin.
func (env *testEnv) registerAndLogin(email, password string) string {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/auth/register", echo.Map{"email": email, "password": password}, "")
	require.Equal(env.T, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", echo.Map{"email": email, "password": password}, "")
	require.Equal(env.T, http.StatusOK, rec.Code)

	body := decode(env.T, rec)
	tok, ok := body["access_token"].(string)
	require.True(env.T, ok)
	return tok
}

func (env *testEnv) createSweet(bearer string, name, category string, price float64, quantity int) uint {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/sweets", echo.Map{
		"name": name, "category": category, "price": price, "quantity": quantity,
	}, bearer)
	require.Equal(env.T, http.StatusCreated, rec.Code)

	return uint(decode(env.T, rec)["id"].(float64))
}

func TestRegisterResponse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "first@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "first@example.com", body["email"])
	require.Equal(t, true, body["is_admin"])
	require.Contains(t, body, "id")
	require.NotContains(t, body, "password")
	require.NotContains(t, body, "password_hash")
	require.NotContains(t, rec.Body.String(), "pass1234")
}

func TestRegisterRejects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "dup@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "dup@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "short@example.com", "password": "abc",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginResponse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "admin@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", echo.Map{
		"email": "admin@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "bearer", body["token_type"])
	require.Equal(t, "admin@example.com", body["email"])
	require.Equal(t, true, body["is_admin"])
}

func TestLoginFailureIsUniform(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", echo.Map{
		"email": "real@example.com", "password": "pass1234",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	unknown := env.do(http.MethodPost, "/api/auth/login", echo.Map{
		"email": "nonexistent@x.com", "password": "any",
	}, "")
	wrongPw := env.do(http.MethodPost, "/api/auth/login", echo.Map{
		"email": "real@example.com", "password": "wrongpass",
	}, "")

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	require.Equal(t, unknown.Body.String(), wrongPw.Body.String())
}

func TestSweetsRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/sweets", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/sweets", nil, "not-a-valid-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/sweets", echo.Map{
		"name": "Ladoo", "category": "Indian", "price": 10.5, "quantity": 50,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndListSweets(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	id := env.createSweet(tok, "Ladoo", "Indian", 10.5, 50)
	require.NotZero(t, id)

	rec := env.do(http.MethodGet, "/api/sweets", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []models.Sweet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Ladoo", items[0].Name)
	require.Equal(t, "Indian", items[0].Category)
	require.Equal(t, 10.5, items[0].Price)
	require.Equal(t, 50, items[0].Quantity)
}

func TestCreateSweetValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	rec := env.do(http.MethodPost, "/api/sweets", echo.Map{
		"name": "Free", "category": "Indian", "price": 0, "quantity": 5,
	}, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSweets(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	env.createSweet(tok, "Jalebi", "Indian", 15.0, 30)
	env.createSweet(tok, "Barfi", "Indian", 20.0, 40)

	rec := env.do(http.MethodGet, "/api/sweets/search?name=Jal", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.Sweet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Jalebi", items[0].Name)

	rec = env.do(http.MethodGet, "/api/sweets/search?category=Indian&min_price=18", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Barfi", items[0].Name)
}

func TestUpdateSweet(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	id := env.createSweet(tok, "Ladoo", "Indian", 10.5, 50)

	rec := env.do(http.MethodPut, "/api/sweets/1", echo.Map{
		"name": "Kaju Katli", "category": "Premium", "price": 25.0, "quantity": 10,
	}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.EqualValues(t, id, body["id"].(float64))
	require.Equal(t, "Kaju Katli", body["name"])
	require.Equal(t, "Premium", body["category"])

	rec = env.do(http.MethodPut, "/api/sweets/999", echo.Map{
		"name": "Ghost", "category": "None", "price": 1.0, "quantity": 1,
	}, tok)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSweetAdminGating(t *testing.T) {
	env := newTestEnv(t)
	adminTok := env.registerAndLogin("admin@example.com", "pass1234")
	memberTok := env.registerAndLogin("member@example.com", "pass1234")

	id := env.createSweet(adminTok, "Ladoo", "Indian", 10.5, 50)

	rec := env.do(http.MethodDelete, "/api/sweets/1", nil, memberTok)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// 403 also for ids that do not exist: authorization is checked
	// before lookup.
	rec = env.do(http.MethodDelete, "/api/sweets/999", nil, memberTok)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/sweets/1", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Sweet deleted successfully", decode(t, rec)["detail"])

	rec = env.do(http.MethodDelete, "/api/sweets/1", nil, adminTok)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Sweet{}).Where("id = ?", id).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestPurchaseDefaultsToOne(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	env.createSweet(tok, "Ladoo", "Indian", 10.5, 50)

	rec := env.do(http.MethodPost, "/api/sweets/1/purchase", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.EqualValues(t, 1, body["id"].(float64))
	require.EqualValues(t, 49, body["quantity"].(float64))
}

func TestPurchaseErrors(t *testing.T) {
	env := newTestEnv(t)
	tok := env.registerAndLogin("user@example.com", "pass1234")

	env.createSweet(tok, "Ladoo", "Indian", 10.5, 3)

	rec := env.do(http.MethodPost, "/api/sweets/1/purchase", echo.Map{"amount": 0}, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/sweets/1/purchase", echo.Map{"amount": 4}, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Not enough stock")

	rec = env.do(http.MethodPost, "/api/sweets/999/purchase", nil, tok)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestockAdminGating(t *testing.T) {
	env := newTestEnv(t)
	adminTok := env.registerAndLogin("admin@example.com", "pass1234")
	memberTok := env.registerAndLogin("member@example.com", "pass1234")

	env.createSweet(adminTok, "Ladoo", "Indian", 10.5, 3)

	rec := env.do(http.MethodPost, "/api/sweets/1/restock", echo.Map{"amount": 5}, memberTok)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/sweets/1/restock", echo.Map{"amount": 5}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 8, decode(t, rec)["quantity"].(float64))

	rec = env.do(http.MethodPost, "/api/sweets/1/restock", nil, adminTok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/sweets/999/restock", echo.Map{"amount": 5}, adminTok)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
