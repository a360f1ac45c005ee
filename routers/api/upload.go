package api

import (
	"net/http"

	"TikTokAuto-server/models"
	"TikTokAuto-server/service"

	"github.com/gin-gonic/gin"
)

func GetUpload(c *gin.Context) {
	upload, err := Store.GetUpload(c.Param("upload_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload": upload})
}

// RetryUpload is the operator escape hatch for uploads that exhausted their
// automatic retries: it resets the row to pending and re-dispatches it,
// regardless of retry_count.
func RetryUpload(c *gin.Context) {
	uploadID := c.Param("upload_id")
	upload, err := Store.GetUpload(uploadID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	if upload.Status != models.UploadStatusFailed && upload.Status != models.UploadStatusManualRequired {
		c.JSON(http.StatusConflict, gin.H{"error": "upload is " + upload.Status + ", nothing to retry"})
		return
	}
	if err := Store.ResetUploadToPending(uploadID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := service.EnqueueUploadDispatch(uploadID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset but enqueue failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_id": uploadID, "status": models.UploadStatusPending})
}
