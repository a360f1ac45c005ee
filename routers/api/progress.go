package api

import (
	"net/http"
	"time"

	"TikTokAuto-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StoryProgressWebSocket pushes story status and progress-note changes to
// the dashboard. The database is the source of truth: the pipeline writes
// progress rows, this handler just polls and pushes the diffs.
func StoryProgressWebSocket(c *gin.Context) {
	storyID := c.Param("story_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "websocket upgrade failed"})
		return
	}
	defer conn.Close()

	story, err := Store.GetStory(storyID)
	if err != nil {
		_ = conn.WriteJSON(map[string]interface{}{"error": "story not found"})
		return
	}
	_ = conn.WriteJSON(story)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := story.Status
	prevNote := story.Note

	for range ticker.C {
		cur, err := Store.GetStory(storyID)
		if err != nil {
			continue
		}
		if cur.Status != prevStatus || cur.Note != prevNote {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevNote = cur.Note
		}
		if cur.Status == models.StoryStatusCompleted ||
			cur.Status == models.StoryStatusFailed ||
			cur.Status == models.StoryStatusRejected {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}
