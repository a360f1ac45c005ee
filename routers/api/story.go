package api

import (
	"net/http"
	"strconv"

	"TikTokAuto-server/models"
	"TikTokAuto-server/ratelimit"
	"TikTokAuto-server/service"

	"github.com/gin-gonic/gin"
)

var (
	Store   *models.Store
	Limiter *ratelimit.Limiter
)

// Init wires the handler singletons. Call once from main before serving.
func Init(store *models.Store, limiter *ratelimit.Limiter) {
	Store = store
	Limiter = limiter
}

// ListStories returns stories filtered by status (default pending), newest
// first. This backs the approval dashboard list view.
func ListStories(c *gin.Context) {
	status := c.DefaultQuery("status", models.StoryStatusPending)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	stories, err := Store.StoriesByStatus(status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func GetStory(c *gin.Context) {
	story, err := Store.GetStory(c.Param("story_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	scripts, err := Store.ScriptsByStoryID(story.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story, "scripts": scripts})
}

// ApproveStory is the human gate into the pipeline: pending -> approved,
// then the pipeline unit is enqueued.
func ApproveStory(c *gin.Context) {
	storyID := c.Param("story_id")
	story, err := Store.GetStory(storyID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	if story.Status != models.StoryStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "story is " + story.Status + ", not pending"})
		return
	}
	if err := Store.UpdateStoryStatus(storyID, models.StoryStatusApproved, "approved by operator"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := service.EnqueuePipelineRun(storyID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approved but enqueue failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"story_id": storyID, "status": models.StoryStatusApproved})
}

func RejectStory(c *gin.Context) {
	storyID := c.Param("story_id")
	story, err := Store.GetStory(storyID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	if story.Status != models.StoryStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "story is " + story.Status + ", not pending"})
		return
	}
	if err := Store.UpdateStoryStatus(storyID, models.StoryStatusRejected, "rejected by operator"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"story_id": storyID, "status": models.StoryStatusRejected})
}

// DeleteStory removes a story and every descendant row.
func DeleteStory(c *gin.Context) {
	storyID := c.Param("story_id")
	if _, err := Store.GetStory(storyID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	if err := Store.DeleteStoryCascade(storyID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": storyID})
}

// GetStoryBatch returns the latest batch for a story with its uploads.
func GetStoryBatch(c *gin.Context) {
	storyID := c.Param("story_id")
	batch, err := Store.LatestBatchForStory(storyID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batch for story"})
		return
	}
	uploads, err := Store.UploadsByBatchID(batch.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch, "uploads": uploads})
}

// GetStats backs the dashboard counters.
func GetStats(c *gin.Context) {
	counts, err := Store.CountByStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": counts})
}

// GetUploadQuota reports the remaining daily platform upload quota.
func GetUploadQuota(c *gin.Context) {
	remaining, err := Limiter.RemainingToday(c.Request.Context(), service.ResourceUpload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	used, err := Limiter.UsedToday(c.Request.Context(), service.ResourceUpload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"used_today": used, "remaining_today": remaining})
}
