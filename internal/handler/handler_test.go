package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arrayops/librarian/config"
	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/middleware"
	"github.com/arrayops/librarian/internal/router"
)

func setupAPI(t *testing.T) (http.Handler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&database.Observation{},
		&database.Store{},
		&database.File{},
		&database.FileInstance{},
		&database.FileEvent{},
	)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Librarian.Name = "test-librarian"

	r := router.NewRouter(middleware.NewLoggerMiddleware(), db, router.NewServices(db), cfg)
	return r.GetEngine(), db
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func seedFile(t *testing.T, db *gorm.DB, name string) {
	require.NoError(t, db.Create(&database.File{
		Name: name, Type: "uvh5", ObsID: 1, Size: 10,
		MD5: "d41d8cd98f00b204e9800998ecf8427e", Source: "test",
	}).Error)
}

func TestCreateFileEventEndpoint(t *testing.T) {
	h, db := setupAPI(t)
	seedFile(t, db, "zen.2458432.34569.uvh5")

	t.Run("records the event and returns empty data", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/create_file_event", map[string]interface{}{
			"file_name": "zen.2458432.34569.uvh5",
			"type":      "quality_check",
			"payload":   map[string]interface{}{"passed": true},
		})
		require.Equal(t, http.StatusOK, w.Code)

		envelope := decodeResponse(t, w)
		assert.Equal(t, float64(0), envelope["code"])
		// The success payload is an empty object, which the envelope's
		// omitempty elides entirely.
		assert.NotContains(t, envelope, "data")

		var events []database.FileEvent
		require.NoError(t, db.Where("name = ?", "zen.2458432.34569.uvh5").Find(&events).Error)
		require.Len(t, events, 1)
		assert.Equal(t, "quality_check", events[0].Type)
	})

	t.Run("unknown file is 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/create_file_event", map[string]interface{}{
			"file_name": "zen.missing.uvh5",
			"type":      "quality_check",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("oversized payload is 400", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/create_file_event", map[string]interface{}{
			"file_name": "zen.2458432.34569.uvh5",
			"type":      "padded",
			"payload":   map[string]interface{}{"pad": strings.Repeat("x", database.MaxEventPayloadBytes)},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/create_file_event", map[string]interface{}{
			"file_name": "zen.2458432.34569.uvh5",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLocateFileInstanceEndpoint(t *testing.T) {
	h, db := setupAPI(t)
	seedFile(t, db, "zen.located.uvh5")
	require.NoError(t, db.Create(&database.Store{
		Name: "pot1", Kind: database.StoreKindSSH, PathPrefix: "/data",
		SSHHost: "pot1.example.org", Available: true,
	}).Error)
	require.NoError(t, db.Create(&database.FileInstance{
		StoreID: 1, ParentDirs: "2458432", Name: "zen.located.uvh5",
	}).Error)

	t.Run("returns the preferred copy", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/locate_file_instance", map[string]interface{}{
			"file_name": "zen.located.uvh5",
		})
		require.Equal(t, http.StatusOK, w.Code)

		envelope := decodeResponse(t, w)
		data, ok := envelope["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "/data/2458432/zen.located.uvh5", data["full_path_on_store"])
		assert.Equal(t, "pot1", data["store_name"])
		assert.Equal(t, "2458432/zen.located.uvh5", data["store_path"])
		assert.Equal(t, "pot1.example.org", data["store_ssh_host"])
	})

	t.Run("unknown file is 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/locate_file_instance", map[string]interface{}{
			"file_name": "zen.missing.uvh5",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("file without copies is 404", func(t *testing.T) {
		seedFile(t, db, "zen.lonely.uvh5")
		w := doJSON(t, h, http.MethodPost, "/api/locate_file_instance", map[string]interface{}{
			"file_name": "zen.lonely.uvh5",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFileEndpoints(t *testing.T) {
	h, _ := setupAPI(t)

	register := map[string]interface{}{
		"name":  "zen.rest.uvh5",
		"type":  "uvh5",
		"obsid": 2458432,
		"size":  1024,
		"md5":   "D41D8CD98F00B204E9800998ECF8427E",
	}

	t.Run("register then fetch", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/files", register)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, h, http.MethodGet, "/api/v1/files/zen.rest.uvh5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		envelope := decodeResponse(t, w)
		data := envelope["data"].(map[string]interface{})
		assert.Equal(t, "zen.rest.uvh5", data["name"])
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", data["md5"])

		// Source is librarian-local and never serialized.
		assert.NotContains(t, data, "source")
	})

	t.Run("duplicate registration is 409", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/files", register)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid name is 400", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/files", map[string]interface{}{
			"name": "dir/zen.uvh5", "type": "uvh5", "obsid": 1,
			"md5": "d41d8cd98f00b204e9800998ecf8427e",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("export record round-trips through import", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/v1/files/zen.rest.uvh5/record", nil)
		require.Equal(t, http.StatusOK, w.Code)
		record := decodeResponse(t, w)["data"].(map[string]interface{})

		h2, _ := setupAPI(t)
		w = doJSON(t, h2, http.MethodPost, "/api/v1/files/import", map[string]interface{}{
			"source_name": "peer-librarian",
			"record":      record,
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, h2, http.MethodGet, "/api/v1/files/zen.rest.uvh5", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, record["md5"], data["md5"])
	})

	t.Run("file events are served", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/create_file_event", map[string]interface{}{
			"file_name": "zen.rest.uvh5",
			"type":      "noted",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, h, http.MethodGet, "/api/v1/files/zen.rest.uvh5/events", nil)
		require.Equal(t, http.StatusOK, w.Code)
		events := decodeResponse(t, w)["data"].([]interface{})
		require.Len(t, events, 1)
		assert.Equal(t, "noted", events[0].(map[string]interface{})["type"])
	})
}

func TestStoreEndpoints(t *testing.T) {
	h, _ := setupAPI(t)

	t.Run("create and fetch a store", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/stores", map[string]interface{}{
			"name": "pot1", "kind": "ssh", "path_prefix": "/data", "available": true,
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, h, http.MethodGet, "/api/v1/stores/pot1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "pot1", data["name"])
	})

	t.Run("invalid kind is 400", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/stores", map[string]interface{}{
			"name": "pot2", "kind": "carrier-pigeon", "path_prefix": "/data",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("availability flips", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPut, "/api/v1/stores/pot1/availability", map[string]interface{}{
			"available": false,
		})
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, false, data["available"])
	})
}

func TestInstanceEndpoints(t *testing.T) {
	h, db := setupAPI(t)
	seedFile(t, db, "zen.inst.uvh5")
	require.NoError(t, db.Create(&database.Store{
		Name: "pot1", Kind: database.StoreKindSSH, PathPrefix: "/data", Available: true,
	}).Error)

	body := map[string]interface{}{
		"store_name": "pot1", "parent_dirs": "2458432", "file_name": "zen.inst.uvh5",
	}

	t.Run("create, conflict, delete", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/v1/instances", body)
		require.Equal(t, http.StatusOK, w.Code, fmt.Sprint(w.Body))

		w = doJSON(t, h, http.MethodPost, "/api/v1/instances", body)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = doJSON(t, h, http.MethodDelete, "/api/v1/instances", body)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, h, http.MethodDelete, "/api/v1/instances", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
