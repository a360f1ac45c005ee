package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TikTokAuto-server/models"
)

func TestPipelineRunSinglePartSuccess(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	scripting := &fakeScripting{parts: 1}
	publishing := &fakePublishing{}
	notifier := &fakeNotifier{}
	p, _, _ := newTestPipeline(store, scripting, publishing, notifier)

	require.NoError(t, p.Run(context.Background(), "story-1"))

	story, err := store.GetStory("story-1")
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusCompleted, story.Status)
	assert.Equal(t, "Uploaded 1/1 part(s)", story.Note)

	batch := store.singleBatch()
	require.NotNil(t, batch)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 1, batch.TotalParts)
	assert.Equal(t, 1, batch.CompletedParts)

	require.Len(t, store.uploads, 1)
	for _, u := range store.uploads {
		assert.Equal(t, models.UploadStatusSuccess, u.Status)
		assert.NotEmpty(t, u.PlatformURL)
		assert.NotNil(t, u.UploadedAt)
		assert.Zero(t, u.RetryCount)
	}
	assert.Empty(t, notifier.alerts)
}

func TestPipelineRunProcessesPartsInOrder(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	publishing := &fakePublishing{}
	p, narration, rendering := newTestPipeline(store, &fakeScripting{parts: 3}, publishing, &fakeNotifier{})

	require.NoError(t, p.Run(context.Background(), "story-1"))

	assert.Equal(t, []int{1, 2, 3}, narration.order)
	assert.Equal(t, []int{1, 2, 3}, rendering.order)
	assert.Equal(t, []string{"video/part-1.mp4", "video/part-2.mp4", "video/part-3.mp4"}, publishing.order)
}

func TestPipelineRunPartialBatchStillCompletesStory(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	publishing := &fakePublishing{failPaths: map[string]bool{"video/part-3.mp4": true}}
	notifier := &fakeNotifier{}
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 3}, publishing, notifier)

	require.NoError(t, p.Run(context.Background(), "story-1"))

	// Two parts landed, one exhausted its retries. Batch is partial but the
	// story still completes.
	batch := store.singleBatch()
	require.NotNil(t, batch)
	assert.Equal(t, models.BatchStatusPartial, batch.Status)
	assert.Equal(t, 3, batch.TotalParts)
	assert.Equal(t, 2, batch.CompletedParts)

	story, err := store.GetStory("story-1")
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusCompleted, story.Status)
	assert.Equal(t, "Uploaded 2/3 part(s)", story.Note)

	failedVideo := ""
	for id, v := range store.videos {
		if v.FilePath == "video/part-3.mp4" {
			failedVideo = id
		}
	}
	require.NotEmpty(t, failedVideo)
	failed := store.uploadForVideo(failedVideo)
	require.NotNil(t, failed)
	assert.Equal(t, models.UploadStatusFailed, failed.Status)
	assert.Equal(t, 3, failed.RetryCount)
	assert.Equal(t, "platform rejected", failed.ErrorMessage)

	assert.Equal(t, 3, publishing.attempts["video/part-3.mp4"])
	assert.Equal(t, 1, publishing.attempts["video/part-1.mp4"])
	assert.Equal(t, 1, notifier.countType("max_retries_exceeded"))
}

func TestPipelineRunAllUploadsFailedFailsStory(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	publishing := &fakePublishing{failPaths: map[string]bool{
		"video/part-1.mp4": true,
		"video/part-2.mp4": true,
	}}
	notifier := &fakeNotifier{}
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 2}, publishing, notifier)

	require.NoError(t, p.Run(context.Background(), "story-1"))

	batch := store.singleBatch()
	require.NotNil(t, batch)
	assert.Equal(t, models.BatchStatusFailed, batch.Status)
	assert.Equal(t, 0, batch.CompletedParts)

	story, err := store.GetStory("story-1")
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusFailed, story.Status)
	assert.Equal(t, "upload: no parts uploaded", story.Note)
	assert.Equal(t, 1, notifier.countType("batch_failed"))
}

func TestPipelineRunManualRequiredStopsRetrying(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	publishing := &fakePublishing{manual: map[string]string{"video/part-2.mp4": "duplicate content"}}
	notifier := &fakeNotifier{}
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 2}, publishing, notifier)

	require.NoError(t, p.Run(context.Background(), "story-1"))

	// Manual escalation is terminal for the part: one attempt, no retries.
	assert.Equal(t, 1, publishing.attempts["video/part-2.mp4"])
	assert.Equal(t, 1, notifier.countType("manual_required"))

	var manualUpload *models.Upload
	for id, v := range store.videos {
		if v.FilePath == "video/part-2.mp4" {
			manualUpload = store.uploadForVideo(id)
		}
	}
	require.NotNil(t, manualUpload)
	assert.Equal(t, models.UploadStatusManualRequired, manualUpload.Status)
	assert.Equal(t, "duplicate content", manualUpload.ErrorMessage)
	assert.Zero(t, manualUpload.RetryCount)

	batch := store.singleBatch()
	assert.Equal(t, models.BatchStatusPartial, batch.Status)
}

func TestPipelineRunScriptingExhaustionFailsStory(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusApproved)
	scripting := &fakeScripting{parts: 2, failures: 99}
	notifier := &fakeNotifier{}
	p, _, _ := newTestPipeline(store, scripting, &fakePublishing{}, notifier)

	err := p.Run(context.Background(), "story-1")
	require.Error(t, err)

	var ee *ExhaustedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "scripting", ee.Stage)
	assert.Equal(t, 3, ee.Attempts)
	assert.Equal(t, 3, scripting.calls)

	story, gerr := store.GetStory("story-1")
	require.NoError(t, gerr)
	assert.Equal(t, models.StoryStatusFailed, story.Status)
	assert.True(t, strings.HasPrefix(story.Note, "scripting:"), "note %q should be stage-tagged", story.Note)
	assert.Equal(t, 1, notifier.countType("scripting_failed"))
	assert.Empty(t, store.batches)
}

func TestPipelineRunRejectsUnapprovedStory(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusPending)
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 1}, &fakePublishing{}, &fakeNotifier{})

	err := p.Run(context.Background(), "story-1")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Empty(t, store.runs)
}

func TestDispatchUploadSkipsSettledRows(t *testing.T) {
	store := newFakeStore()
	store.CreateUpload(&models.Upload{ID: "u1", VideoID: "v1", Status: models.UploadStatusSuccess})
	publishing := &fakePublishing{}
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 1}, publishing, &fakeNotifier{})

	require.NoError(t, p.DispatchUpload(context.Background(), "u1"))
	assert.Empty(t, publishing.order)
}

func TestDispatchUploadSuccessRefreshesBatchAndStory(t *testing.T) {
	store := newFakeStore()
	store.addStory("story-1", models.StoryStatusCompleted)
	store.CreateVideo(&models.Video{ID: "v3", FilePath: "video/part-3.mp4"})
	store.CreateBatch(&models.Batch{
		ID: "b1", StoryID: "story-1",
		Status: models.BatchStatusPartial, TotalParts: 3, CompletedParts: 2,
	})
	store.CreateUpload(&models.Upload{
		ID: "u3", VideoID: "v3", BatchID: "b1",
		Status: models.UploadStatusPending, RetryCount: 2,
	})
	publishing := &fakePublishing{}
	p, _, _ := newTestPipeline(store, &fakeScripting{parts: 1}, publishing, &fakeNotifier{})

	require.NoError(t, p.DispatchUpload(context.Background(), "u3"))

	upload, err := store.GetUpload("u3")
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusSuccess, upload.Status)

	batch, err := store.GetBatch("b1")
	require.NoError(t, err)
	assert.Equal(t, 3, batch.CompletedParts)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)

	story, err := store.GetStory("story-1")
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusCompleted, story.Status)
	assert.Equal(t, "Uploaded 3/3 part(s)", story.Note)
}
