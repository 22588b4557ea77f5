package storage

import (
	"sort"
	"time"
)

// Bookmark is a bookmarked tweet joined with its stored tweet row.
type Bookmark struct {
	TweetID   string `db:"tweet_id"`
	UserID    string `db:"user_id"`
	URL       string `db:"url"`
	Text      string `db:"text"`
	IsReply   bool   `db:"is_reply"`
	Timestamp string `db:"timestamp"`
}

// TweetRecord represents a single row of the tweets table.
type TweetRecord struct {
	// ID is the tweet identifier.
	ID string `db:"tweet_id" json:"tweet_id"`
	// UserID is the author handle.
	UserID string `db:"user_id" json:"user_id"`
	// Text is the full tweet text.
	Text string `db:"text" json:"text"`
	// Timestamp is the creation time as returned by the API.
	Timestamp string `db:"timestamp" json:"timestamp"`
	// URL is the permalink.
	URL           string `db:"url" json:"url"`
	RepliesCount  int    `db:"replies_count" json:"replies_count"`
	RetweetsCount int    `db:"retweets_count" json:"retweets_count"`
	LikesCount    int    `db:"likes_count" json:"likes_count"`
	HasMedia      bool   `db:"has_media" json:"has_media"`
	// MediaType is the type of the first attachment or "none".
	MediaType string `db:"media_type" json:"media_type"`
	IsReply   bool   `db:"is_reply" json:"is_reply"`
	// ConversationID is the ID of the root tweet of the chain, nil if never walked.
	ConversationID *string `db:"conversation_id" json:"-"`
	// ParentTweetID is nil for a root tweet.
	ParentTweetID *string `db:"parent_tweet_id" json:"parent_tweet_id"`
}

// UserRecord represents a single row of the users table.
type UserRecord struct {
	UserID      string `db:"user_id"`
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
}

// ImageRecord represents a downloaded image.
type ImageRecord struct {
	TweetID      string    `db:"tweet_id"`
	URL          string    `db:"url"`
	LocalPath    string    `db:"local_path"`
	DownloadedAt time.Time `db:"downloaded_at"`
}

// BookmarkDocument is a bookmark joined with tweet and user metadata, as read by the uploader.
type BookmarkDocument struct {
	TweetID       string `db:"tweet_id"`
	Text          string `db:"text"`
	Timestamp     string `db:"timestamp"`
	URL           string `db:"url"`
	LikesCount    int    `db:"likes_count"`
	RetweetsCount int    `db:"retweets_count"`
	RepliesCount  int    `db:"replies_count"`
	HasMedia      bool   `db:"has_media"`
	MediaType     string `db:"media_type"`
	IsReply       bool   `db:"is_reply"`
	Username      string `db:"username"`
	DisplayName   string `db:"display_name"`
}

// Stats summarizes the datastore contents.
type Stats struct {
	Bookmarks        int `db:"bookmarks"`
	PendingBookmarks int `db:"pending"`
	Retrieved        int `db:"retrieved"`
	Conversations    int `db:"conversations"`
	ThreadedTweets   int `db:"threaded_tweets"`
	Images           int `db:"images"`
}

// Storer defines the interface for database operations.
type Storer interface {
	// UnprocessedBookmarks returns bookmarks without a retrieval record, oldest tweet first.
	UnprocessedBookmarks() ([]Bookmark, error)
	// UpsertTweet inserts or fully replaces a tweet row.
	UpsertTweet(t TweetRecord) error
	// UpsertUser inserts or fully replaces a user row.
	UpsertUser(u UserRecord) error
	// SaveImage inserts or replaces the record of a downloaded image.
	SaveImage(img ImageRecord) error
	// MarkRetrieved records a bookmark as attempted. Repeated calls are no-ops.
	MarkRetrieved(tweetID string) error
	// IsRetrieved reports whether a bookmark has a retrieval record.
	IsRetrieved(tweetID string) (bool, error)
	// ThreadedTweets returns every tweet carrying a conversation ID.
	ThreadedTweets() ([]TweetRecord, error)
	// BookmarkDocuments returns all bookmarks joined with tweet and user metadata.
	BookmarkDocuments() ([]BookmarkDocument, error)
	// Stats returns row counts.
	Stats() (Stats, error)
	// Close closes the database connection.
	Close() error
}

// timestampLayouts are the formats seen in the timestamp column.
var timestampLayouts = []string{time.RubyDate, time.RFC3339, time.DateTime}

// ParseTimestamp parses a stored tweet timestamp.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// LessTimestamp orders stored timestamps chronologically. Unparseable values sort after
// parseable ones and among themselves by string.
func LessTimestamp(a, b string) bool {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// SortBookmarks orders bookmarks by tweet timestamp, keeping ties in input order.
func SortBookmarks(b []Bookmark) {
	sort.SliceStable(b, func(i, j int) bool { return LessTimestamp(b[i].Timestamp, b[j].Timestamp) })
}

// GroupByConversation groups threaded tweets by conversation ID, each group ordered by timestamp.
func GroupByConversation(tweets []TweetRecord) map[string][]TweetRecord {
	groups := make(map[string][]TweetRecord)
	for _, t := range tweets {
		if t.ConversationID == nil {
			continue
		}
		groups[*t.ConversationID] = append(groups[*t.ConversationID], t)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return LessTimestamp(g[i].Timestamp, g[j].Timestamp) })
	}
	return groups
}
