package messages

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registryroute "github.com/chirino/history-service/internal/registry/route"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"github.com/chirino/history-service/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 110,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts message routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.HistoryStore, auth gin.HandlerFunc) {
	r.GET("/discussion/:discussionId/messages", auth, func(c *gin.Context) {
		listMessages(c, store)
	})
	r.POST("/discussion/:discussionId/messages", auth, func(c *gin.Context) {
		postMessages(c, store)
	})
}

type messagePage struct {
	Messages   []model.Message `json:"messages"`
	NextCursor *ident.ID       `json:"next_cursor,omitempty"`
}

func listMessages(c *gin.Context, store registrystore.MessageLedger) {
	discussionID, err := ident.Parse(c.Param("discussionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion id"})
		return
	}

	var cursor *ident.ID
	if raw := c.Query("cursor"); raw != "" {
		id, err := ident.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &id
	}

	limit := registrystore.DefaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > registrystore.MaxPageLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
	}

	page, err := store.Page(c.Request.Context(), discussionID, cursor, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagePage{Messages: page.Messages, NextCursor: page.NextCursor})
}

func postMessages(c *gin.Context, store registrystore.DiscussionDirectory) {
	userID := security.GetUserID(c)
	discussionID, err := ident.Parse(c.Param("discussionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discussion id"})
		return
	}

	var req []struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages provided"})
		return
	}
	texts := make([]string, 0, len(req))
	for _, m := range req {
		texts = append(texts, m.Text)
	}

	res, err := store.RecordMessages(c.Request.Context(), discussionID, userID, texts)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"inserted_count":  res.InsertedCount,
		"last_message_id": res.LastMessageID.Hex(),
	})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var unavailable *registrystore.UnavailableError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
