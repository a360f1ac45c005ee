package routers

import (
	"TikTokAuto-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.GET("/stories", api.ListStories)
		v1.GET("/stories/:story_id", api.GetStory)
		v1.POST("/stories/:story_id/approve", api.ApproveStory)
		v1.POST("/stories/:story_id/reject", api.RejectStory)
		v1.DELETE("/stories/:story_id", api.DeleteStory)
		v1.GET("/stories/:story_id/batch", api.GetStoryBatch)
		v1.GET("/uploads/:upload_id", api.GetUpload)
		v1.POST("/uploads/:upload_id/retry", api.RetryUpload)
		v1.GET("/stats", api.GetStats)
		v1.GET("/quota", api.GetUploadQuota)
	}
	r.GET("/stories/:story_id/ws", api.StoryProgressWebSocket)
	return r
}
