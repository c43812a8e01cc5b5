package discussions

import (
	"errors"
	"net/http"

	registryroute "github.com/chirino/history-service/internal/registry/route"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"github.com/chirino/history-service/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts discussion routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.HistoryStore, auth gin.HandlerFunc) {
	r.GET("/discussion", auth, func(c *gin.Context) {
		listDiscussions(c, store)
	})
}

func listDiscussions(c *gin.Context, store registrystore.DiscussionDirectory) {
	userID := security.GetUserID(c)

	discussions, err := store.ListFor(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, discussions)
}

func handleError(c *gin.Context, err error) {
	var unavailable *registrystore.UnavailableError

	switch {
	case errors.As(err, &unavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
