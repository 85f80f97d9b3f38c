package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func callerAndTarget(c *gin.Context, param string) (int64, int64, bool) {
	caller, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, 0, false
	}
	target, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return 0, 0, false
	}
	return caller.(int64), target, true
}

// FollowUser creates a follow edge and seeds the follower's feed with the
// followed user's recent public posts.
func FollowUser(c *gin.Context) {
	followerID, followedID, ok := callerAndTarget(c, "user_id")
	if !ok {
		return
	}
	var req struct {
		Visibility string `json:"visibility"`
	}
	_ = c.ShouldBindJSON(&req)

	follow, err := socialService.FollowUser(c.Request.Context(), followerID, followedID, req.Visibility)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, follow)
}

// UnfollowUser removes the follow edge and rolls the fanned-out entries
// back out of the follower's feed.
func UnfollowUser(c *gin.Context) {
	followerID, followedID, ok := callerAndTarget(c, "user_id")
	if !ok {
		return
	}
	if err := socialService.UnfollowUser(c.Request.Context(), followerID, followedID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unfollowed"})
}

// AddFriend files a friendship request.
func AddFriend(c *gin.Context) {
	userID, friendID, ok := callerAndTarget(c, "user_id")
	if !ok {
		return
	}
	friend, err := socialService.AddFriend(c.Request.Context(), userID, friendID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, friend)
}

// ApproveFriend accepts a pending request and announces the friendship
// privately on both feeds.
func ApproveFriend(c *gin.Context) {
	userID, requesterID, ok := callerAndTarget(c, "user_id")
	if !ok {
		return
	}
	friend, err := socialService.ApproveFriend(c.Request.Context(), userID, requesterID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, friend)
}

// DeleteFriend removes the friendship in both directions.
func DeleteFriend(c *gin.Context) {
	userID, friendID, ok := callerAndTarget(c, "user_id")
	if !ok {
		return
	}
	if err := socialService.DeleteFriend(c.Request.Context(), userID, friendID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GetFriends lists the caller's approved friends.
func GetFriends(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	friends, err := socialService.GetFriends(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list friends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}
