package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"feedgraph/services"
)

func feedOptionsFromQuery(c *gin.Context) (services.FeedOptions, error) {
	var opts services.FeedOptions
	opts.Type = c.Query("type")
	opts.OlderThan = c.Query("older_than")
	opts.PageState = c.Query("page_state")
	if opts.Type != "" && opts.OlderThan != "" {
		return opts, errors.New("type and older_than cannot be combined")
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return opts, errors.New("invalid page_size")
		}
		opts.PageSize = size
	}
	return opts, nil
}

// viewerAndOwner resolves the authenticated viewer and the :user_id path owner.
func viewerAndOwner(c *gin.Context) (int64, int64, bool) {
	viewer, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, 0, false
	}
	ownerID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return 0, 0, false
	}
	return viewer.(int64), ownerID, true
}

// GetFeed returns the aggregated feed of a user, decorated for the viewer.
func GetFeed(c *gin.Context) {
	viewerID, ownerID, ok := viewerAndOwner(c)
	if !ok {
		return
	}
	opts, err := feedOptionsFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, pageState, err := engine.GetFeed(c.Request.Context(), viewerID, ownerID, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": items, "page_state": pageState})
}

// GetUserFeed returns a user's own-actions timeline, decorated for the viewer.
func GetUserFeed(c *gin.Context) {
	viewerID, ownerID, ok := viewerAndOwner(c)
	if !ok {
		return
	}
	opts, err := feedOptionsFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, pageState, err := engine.GetUserFeed(c.Request.Context(), viewerID, ownerID, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": items, "page_state": pageState})
}

// GetRawFeed returns undecorated, unfiltered feed rows. The caller may
// only inspect their own feed this way.
func GetRawFeed(c *gin.Context) {
	viewerID, ownerID, ok := viewerAndOwner(c)
	if !ok {
		return
	}
	if viewerID != ownerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	opts, err := feedOptionsFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, pageState, err := engine.GetRawFeed(c.Request.Context(), ownerID, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": rows, "page_state": pageState})
}

// GetUnseenCount returns how many feed entries arrived since the caller
// last viewed their feed.
func GetUnseenCount(c *gin.Context) {
	viewer, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	count, err := counters.GetUnseen(c.Request.Context(), viewer.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read counter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unseen": count})
}
