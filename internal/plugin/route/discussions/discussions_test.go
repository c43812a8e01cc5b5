package discussions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/plugin/store/gormstore"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"github.com/chirino/history-service/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, registrystore.HistoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormstore.AutoMigrate(db))
	s := gormstore.NewStore(db, nil)
	s.SetAllocator(ident.Sequence(1))

	r := gin.New()
	MountRoutes(r, s, security.GatewayAuthMiddleware(security.DefaultIdentityHeader))
	return r, s
}

func listFor(t *testing.T, r *gin.Engine, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/discussion", nil)
	if user != "" {
		req.Header.Set(security.DefaultIdentityHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListDiscussions(t *testing.T) {
	t.Run("rejects requests without the identity header", func(t *testing.T) {
		r, _ := newTestRouter(t)
		w := listFor(t, r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty directory lists as an empty array", func(t *testing.T) {
		r, _ := newTestRouter(t)
		w := listFor(t, r, "alice")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("lists only the caller's discussions, newest first", func(t *testing.T) {
		r, s := newTestRouter(t)
		ctx := t.Context()

		first := ident.Sequence(1000).NewID()
		second := ident.Sequence(2000).NewID()
		_, err := s.RecordMessages(ctx, first, "alice", []string{"hello"})
		require.NoError(t, err)
		_, err = s.RecordMessages(ctx, second, "alice", []string{"newer"})
		require.NoError(t, err)
		_, err = s.RecordMessages(ctx, ident.Sequence(3000).NewID(), "bob", []string{"private"})
		require.NoError(t, err)

		w := listFor(t, r, "alice")
		require.Equal(t, http.StatusOK, w.Code)

		var list []struct {
			ID          string   `json:"id"`
			Users       []string `json:"users"`
			LastMessage *struct {
				Text   string `json:"text"`
				UserID string `json:"user_id"`
			} `json:"last_message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, second.Hex(), list[0].ID)
		assert.Equal(t, first.Hex(), list[1].ID)
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, "newer", list[0].LastMessage.Text)
		assert.Equal(t, "alice", list[0].LastMessage.UserID)
		assert.Equal(t, []string{"alice"}, list[0].Users)
	})
}
