package client

import (
	"fmt"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/internal/fs"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

// ManifestName is the file name of a thread manifest inside its conversation directory.
const ManifestName = "thread.json"

// Manifest describes one conversation as walked from a bookmark.
type Manifest struct {
	ConversationID string          `json:"conversation_id"`
	TweetCount     int             `json:"tweet_count"`
	Tweets         []ManifestTweet `json:"tweets"`
}

// ManifestTweet is a tweet entry of a Manifest.
type ManifestTweet struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"created_at"`
	URL       string   `json:"url"`
	Images    []string `json:"images"`
}

// NewManifest builds the manifest of a chain ordered oldest first.
func NewManifest(conversationID string, chain []fxtwitter.Tweet) Manifest {
	m := Manifest{
		ConversationID: conversationID,
		TweetCount:     len(chain),
		Tweets:         make([]ManifestTweet, 0, len(chain)),
	}
	for i := range chain {
		t := &chain[i]
		m.Tweets = append(m.Tweets, ManifestTweet{
			ID:        t.ID,
			Author:    t.Author.ScreenName,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
			URL:       t.URL,
			Images:    t.PhotoURLs(),
		})
	}
	return m
}

// ExportThreadIndex rewrites the thread index from the datastore and returns the
// number of conversations in it.
func (c *Client) ExportThreadIndex() (int, error) {
	tweets, err := c.db.ThreadedTweets()
	if err != nil {
		return 0, err
	}
	groups := storage.GroupByConversation(tweets)
	if err := fs.WriteJSON(c.cfg.ThreadIndexPath(), groups); err != nil {
		return 0, fmt.Errorf("failed to write thread index: %w", err)
	}
	c.logger.Info().Int("threads", len(groups)).Str("path", c.cfg.ThreadIndexPath()).Msg("exported thread index")
	return len(groups), nil
}
