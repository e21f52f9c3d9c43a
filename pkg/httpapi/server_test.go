package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/httpapi"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/tools"
)

type fakeStore struct {
	healthOK bool
}

func (f *fakeStore) SaveMemory(ctx context.Context, category, topic, content string) (*relational.SavedMemory, error) {
	return &relational.SavedMemory{ID: 1}, nil
}
func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Memory, error) { return nil, nil }
func (f *fakeStore) Update(ctx context.Context, id int64, fields relational.UpdateFields) (bool, error) {
	return true, nil
}
func (f *fakeStore) Move(ctx context.Context, id int64, newCategory string) (bool, error) {
	return true, nil
}
func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) { return true, nil }
func (f *fakeStore) SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) Recent(ctx context.Context, limit int) ([]models.Memory, error) { return nil, nil }
func (f *fakeStore) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}
func (f *fakeStore) AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error {
	return nil
}
func (f *fakeStore) ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) Stats(ctx context.Context) (*models.Stats, error) { return &models.Stats{}, nil }
func (f *fakeStore) Health(ctx context.Context) (*models.Health, error) {
	return &models.Health{OK: f.healthOK, Detail: "fake"}, nil
}
func (f *fakeStore) Close() error { return nil }

func TestHealthReturnsOKWhenRelationalHealthy(t *testing.T) {
	store := &fakeStore{healthOK: true}
	engine := httpapi.New(httpapi.Deps{Store: store, Dispatcher: tools.NewDispatcher()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["overall_ok"])
}

func TestHealthReturnsServiceUnavailableWhenRelationalUnhealthy(t *testing.T) {
	store := &fakeStore{healthOK: false}
	engine := httpapi.New(httpapi.Deps{Store: store, Dispatcher: tools.NewDispatcher()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListToolsReturnsRegisteredNames(t *testing.T) {
	d := tools.NewDispatcher()
	d.Register(tools.ToolSpec{Name: "ping", Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	}})
	engine := httpapi.New(httpapi.Deps{Store: &fakeStore{healthOK: true}, Dispatcher: d})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ping")
}

func TestCallToolDispatchesAndReturnsHandlerResult(t *testing.T) {
	d := tools.NewDispatcher()
	d.Register(tools.ToolSpec{Name: "ping", Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	}})
	engine := httpapi.New(httpapi.Deps{Store: &fakeStore{healthOK: true}, Dispatcher: d})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/ping", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pong")
}

func TestCallUnknownToolReturnsFailureEnvelopeWithHTTP200(t *testing.T) {
	engine := httpapi.New(httpapi.Deps{Store: &fakeStore{healthOK: true}, Dispatcher: tools.NewDispatcher()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/does_not_exist", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
}
