package service

import (
	"context"
	"fmt"
	"time"

	"TikTokAuto-server/models"
)

// fakeStore is an in-memory EntityStore for coordinator and sweep tests.
type fakeStore struct {
	stories     map[string]*models.Story
	scripts     []models.Script
	audios      map[string]*models.Audio
	videos      map[string]*models.Video
	videoOrder  []string
	uploads     map[string]*models.Upload
	uploadOrder []string
	batches     map[string]*models.Batch
	runs        map[string]*models.PipelineRun
	notes       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stories: map[string]*models.Story{},
		audios:  map[string]*models.Audio{},
		videos:  map[string]*models.Video{},
		uploads: map[string]*models.Upload{},
		batches: map[string]*models.Batch{},
		runs:    map[string]*models.PipelineRun{},
	}
}

func (f *fakeStore) addStory(id, status string) *models.Story {
	s := &models.Story{ID: id, Status: status, Title: "t", Content: "c"}
	f.stories[id] = s
	return s
}

func (f *fakeStore) GetStory(id string) (*models.Story, error) {
	s, ok := f.stories[id]
	if !ok {
		return nil, fmt.Errorf("story %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) UpdateStoryStatus(id, status, note string) error {
	s, ok := f.stories[id]
	if !ok {
		return fmt.Errorf("story %s not found", id)
	}
	s.Status = status
	if note != "" {
		s.Note = note
		f.notes = append(f.notes, note)
	}
	return nil
}

func (f *fakeStore) CreateStories(stories []models.Story) (int, error) {
	n := 0
	for i := range stories {
		if _, ok := f.stories[stories[i].ID]; !ok {
			cp := stories[i]
			f.stories[cp.ID] = &cp
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateScripts(scripts []models.Script) error {
	if err := models.ValidatePartNumbers(scripts); err != nil {
		return err
	}
	f.scripts = append(f.scripts, scripts...)
	return nil
}

func (f *fakeStore) ScriptsByStoryID(storyID string) ([]models.Script, error) {
	var out []models.Script
	for _, sc := range f.scripts {
		if sc.StoryID == storyID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAudio(a *models.Audio) error {
	cp := *a
	f.audios[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetAudio(id string) (*models.Audio, error) {
	a, ok := f.audios[id]
	if !ok {
		return nil, fmt.Errorf("audio %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateVideo(v *models.Video) error {
	cp := *v
	f.videos[cp.ID] = &cp
	f.videoOrder = append(f.videoOrder, cp.ID)
	return nil
}

func (f *fakeStore) GetVideo(id string) (*models.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, fmt.Errorf("video %s not found", id)
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) VideosWithoutUpload(limit int) ([]models.Video, error) {
	used := map[string]bool{}
	for _, u := range f.uploads {
		used[u.VideoID] = true
	}
	var out []models.Video
	for _, id := range f.videoOrder {
		if !used[id] && len(out) < limit {
			out = append(out, *f.videos[id])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUpload(u *models.Upload) error {
	cp := *u
	f.uploads[cp.ID] = &cp
	f.uploadOrder = append(f.uploadOrder, cp.ID)
	return nil
}

func (f *fakeStore) GetUpload(id string) (*models.Upload, error) {
	u, ok := f.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateUploadStatus(id, status, errMsg string) error {
	u, ok := f.uploads[id]
	if !ok {
		return fmt.Errorf("upload %s not found", id)
	}
	u.Status = status
	if errMsg != "" {
		u.ErrorMessage = errMsg
	}
	return nil
}

func (f *fakeStore) MarkUploadSuccess(id, platformVideoID, platformURL string, at time.Time) error {
	u, ok := f.uploads[id]
	if !ok {
		return fmt.Errorf("upload %s not found", id)
	}
	u.Status = models.UploadStatusSuccess
	u.PlatformVideoID = platformVideoID
	u.PlatformURL = platformURL
	u.UploadedAt = &at
	return nil
}

func (f *fakeStore) IncrementUploadRetry(id string) (int, error) {
	u, ok := f.uploads[id]
	if !ok {
		return 0, fmt.Errorf("upload %s not found", id)
	}
	u.RetryCount++
	return u.RetryCount, nil
}

func (f *fakeStore) ResetUploadToPending(id string) error {
	return f.UpdateUploadStatus(id, models.UploadStatusPending, "")
}

func (f *fakeStore) PendingUploads(limit int) ([]models.Upload, error) {
	var out []models.Upload
	for _, id := range f.uploadOrder {
		u := f.uploads[id]
		if u.Status == models.UploadStatusPending && len(out) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) FailedUploadsForRetry(maxRetries, limit int) ([]models.Upload, error) {
	var out []models.Upload
	for _, id := range f.uploadOrder {
		u := f.uploads[id]
		if u.Status == models.UploadStatusFailed && u.RetryCount < maxRetries && len(out) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) ExpiredSuccessfulUploads(cutoff time.Time, limit int) ([]models.Upload, error) {
	var out []models.Upload
	for _, id := range f.uploadOrder {
		u := f.uploads[id]
		if u.Status == models.UploadStatusSuccess && u.UploadedAt != nil && u.UploadedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) MediaPathsForUpload(u *models.Upload) (string, string, error) {
	v, err := f.GetVideo(u.VideoID)
	if err != nil {
		return "", "", err
	}
	a, err := f.GetAudio(v.AudioID)
	if err != nil {
		return v.FilePath, "", err
	}
	return v.FilePath, a.FilePath, nil
}

func (f *fakeStore) CreateBatch(b *models.Batch) error {
	cp := *b
	f.batches[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetBatch(id string) (*models.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) IncrementBatchCompleted(id string) error {
	b, ok := f.batches[id]
	if !ok {
		return fmt.Errorf("batch %s not found", id)
	}
	b.CompletedParts++
	return nil
}

func (f *fakeStore) UpdateBatchStatus(id, status string) error {
	b, ok := f.batches[id]
	if !ok {
		return fmt.Errorf("batch %s not found", id)
	}
	b.Status = status
	return nil
}

func (f *fakeStore) CreatePipelineRun(r *models.PipelineRun) error {
	cp := *r
	f.runs[cp.ID] = &cp
	return nil
}

func (f *fakeStore) UpdatePipelineRunStep(id, step string) error {
	if r, ok := f.runs[id]; ok {
		r.CurrentStep = step
	}
	return nil
}

func (f *fakeStore) FinishPipelineRun(id, status, batchID, errMsg string, at time.Time) error {
	if r, ok := f.runs[id]; ok {
		r.Status = status
		r.BatchID = batchID
		r.ErrorMessage = errMsg
		r.CompletedAt = &at
	}
	return nil
}

func (f *fakeStore) singleBatch() *models.Batch {
	for _, b := range f.batches {
		return b
	}
	return nil
}

func (f *fakeStore) uploadForVideo(videoID string) *models.Upload {
	for _, u := range f.uploads {
		if u.VideoID == videoID {
			return u
		}
	}
	return nil
}

// Collaborator fakes.

type fakeScripting struct {
	parts    int
	failures int
	calls    int
}

func (s *fakeScripting) Generate(ctx context.Context, story *models.Story) ([]models.Script, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("llm unavailable")
	}
	scripts := make([]models.Script, 0, s.parts)
	for i := 1; i <= s.parts; i++ {
		scripts = append(scripts, models.Script{
			PartNumber: i,
			TotalParts: s.parts,
			Content:    fmt.Sprintf("part %d content", i),
		})
	}
	return scripts, nil
}

type fakeNarration struct {
	order []int
}

func (n *fakeNarration) Synthesize(ctx context.Context, script *models.Script) (*models.Audio, error) {
	n.order = append(n.order, script.PartNumber)
	return &models.Audio{
		FilePath:        fmt.Sprintf("audio/part-%d.mp3", script.PartNumber),
		DurationSeconds: 42,
	}, nil
}

type fakeRendering struct {
	order []int
}

func (r *fakeRendering) Render(ctx context.Context, audio *models.Audio) (*models.Video, error) {
	var part int
	fmt.Sscanf(audio.FilePath, "audio/part-%d.mp3", &part)
	r.order = append(r.order, part)
	v := &models.Video{
		FilePath:        fmt.Sprintf("video/part-%d.mp4", part),
		DurationSeconds: 58,
		Resolution:      "1080x1920",
	}
	return v, nil
}

type fakePublishing struct {
	failPaths map[string]bool
	manual    map[string]string
	order     []string
	attempts  map[string]int
}

func (p *fakePublishing) Upload(ctx context.Context, video *models.Video, batchID string) (UploadResult, error) {
	if p.attempts == nil {
		p.attempts = map[string]int{}
	}
	p.order = append(p.order, video.FilePath)
	p.attempts[video.FilePath]++
	if reason, ok := p.manual[video.FilePath]; ok {
		return UploadResult{Status: models.UploadStatusManualRequired, Reason: reason}, nil
	}
	if p.failPaths[video.FilePath] {
		return UploadResult{Status: models.UploadStatusFailed, Reason: "platform rejected"}, nil
	}
	return UploadResult{
		Status:          models.UploadStatusSuccess,
		PlatformVideoID: "ext-" + video.FilePath,
		PlatformURL:     "https://tiktok.example/" + video.FilePath,
	}, nil
}

type fakeNotifier struct {
	alerts []string
}

func (n *fakeNotifier) Alert(subjectID, failureType, reason string) {
	n.alerts = append(n.alerts, failureType+":"+subjectID)
}

func (n *fakeNotifier) countType(failureType string) int {
	c := 0
	for _, a := range n.alerts {
		if len(a) >= len(failureType) && a[:len(failureType)] == failureType {
			c++
		}
	}
	return c
}

type allowGovernor struct{}

func (allowGovernor) Check(ctx context.Context, resource string) error { return nil }
func (allowGovernor) WaitForSlot(ctx context.Context, resource string, maxWait time.Duration) bool {
	return true
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func newTestPipeline(store *fakeStore, scripting Scripting, publishing Publishing, notifier Notifier) (*Pipeline, *fakeNarration, *fakeRendering) {
	narration := &fakeNarration{}
	rendering := &fakeRendering{}
	p := NewPipeline(store, scripting, narration, rendering, publishing, notifier,
		allowGovernor{}, testRetryPolicy(), time.Second)
	return p, narration, rendering
}
