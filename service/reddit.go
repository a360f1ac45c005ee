package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"
	"TikTokAuto-server/models"

	"github.com/google/uuid"
	"github.com/vartanbeno/go-reddit/v2/reddit"
)

// RedditAcquirer pulls candidate stories from configured subreddits. Posts
// that are too short or below the score floor are dropped before they ever
// reach the approval queue.
type RedditAcquirer struct {
	client     *reddit.Client
	subreddits []string
	fetchLimit int
	minScore   int
	minLength  int
}

func NewRedditAcquirer() (*RedditAcquirer, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	cfg := config.AppConfig.Reddit
	return &RedditAcquirer{
		client:     client,
		subreddits: cfg.Subreddits,
		fetchLimit: cfg.FetchLimit,
		minScore:   cfg.MinScore,
		minLength:  cfg.MinLength,
	}, nil
}

var _ Acquirer = (*RedditAcquirer)(nil)

func (r *RedditAcquirer) Fetch(ctx context.Context) ([]models.Story, error) {
	var stories []models.Story
	for _, sub := range r.subreddits {
		posts, _, err := r.client.Subreddit.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: r.fetchLimit},
			Time:        "day",
		})
		if err != nil {
			// One bad subreddit must not sink the whole sweep.
			logger.S().Warnf("[acquire] fetch r/%s failed: %v", sub, err)
			continue
		}
		kept := 0
		for _, post := range posts {
			if post.Score < r.minScore || len(post.Body) < r.minLength {
				continue
			}
			meta, _ := json.Marshal(map[string]interface{}{
				"comments":     post.NumberOfComments,
				"upvote_ratio": post.UpvoteRatio,
			})
			stories = append(stories, models.Story{
				ID:        uuid.NewString(),
				SourceID:  post.ID,
				Subreddit: post.SubredditName,
				Title:     post.Title,
				Content:   post.Body,
				Author:    post.Author,
				Score:     post.Score,
				URL:       "https://www.reddit.com" + post.Permalink,
				CharCount: len(post.Body),
				Status:    models.StoryStatusPending,
				Meta:      meta,
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			})
			kept++
		}
		logger.S().Infof("[acquire] r/%s: %d post(s), %d kept", sub, len(posts), kept)
	}
	return stories, nil
}
