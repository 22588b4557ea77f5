// Package upload sends bookmarks as documents to a retriever.sh compatible indexing service.
package upload

import (
	"strings"

	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

// titleTextLength is the number of characters of tweet text kept in a title.
const titleTextLength = 80

// Document is the payload of one upload.
type Document struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the bookmark fields the indexing service stores next to the text.
type Metadata struct {
	TweetID       string `json:"tweet_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	URL           string `json:"url"`
	Timestamp     string `json:"timestamp"`
	LikesCount    int    `json:"likes_count"`
	RetweetsCount int    `json:"retweets_count"`
	RepliesCount  int    `json:"replies_count"`
	HasMedia      bool   `json:"has_media"`
	MediaType     string `json:"media_type"`
	IsReply       bool   `json:"is_reply"`
}

// BuildDocument turns a bookmark row into a document. The title is the handle followed by
// the first 80 characters of the text on a single line; the body keeps the full text.
func BuildDocument(b storage.BookmarkDocument) Document {
	return Document{
		Title: Title(b.Username, b.Text),
		Text:  b.Text,
		Metadata: Metadata{
			TweetID:       b.TweetID,
			Username:      b.Username,
			DisplayName:   b.DisplayName,
			URL:           b.URL,
			Timestamp:     b.Timestamp,
			LikesCount:    b.LikesCount,
			RetweetsCount: b.RetweetsCount,
			RepliesCount:  b.RepliesCount,
			HasMedia:      b.HasMedia,
			MediaType:     b.MediaType,
			IsReply:       b.IsReply,
		},
	}
}

// Title formats a document title. Usernames are stored with a leading "@", which is not repeated.
func Title(username, text string) string {
	if r := []rune(text); len(r) > titleTextLength {
		text = string(r[:titleTextLength])
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return "@" + strings.TrimPrefix(username, "@") + " — " + text
}
