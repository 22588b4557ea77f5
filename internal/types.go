package fxtwitter

// MediaNone is the media type recorded for a tweet without attachments.
const MediaNone = "none"

// Author is the author block of a tweet.
type Author struct {
	// ScreenName is the handle without the leading '@'.
	ScreenName string `json:"screen_name"`
	// Name is the display name.
	Name string `json:"name"`
}

// Photo is a single photo attachment.
type Photo struct {
	// URL is the direct link to the image on the media host.
	URL string `json:"url"`
	// Type is usually "photo".
	Type string `json:"type,omitempty"`
	// Width is the image width in pixels.
	Width int `json:"width,omitempty"`
	// Height is the image height in pixels.
	Height int `json:"height,omitempty"`
}

// MediaItem is an entry of the combined media list.
type MediaItem struct {
	// Type is "photo", "video" or "gif".
	Type string `json:"type"`
	// URL is the direct link to the media file.
	URL string `json:"url,omitempty"`
}

// Media holds the attachments of a tweet.
type Media struct {
	// Photos lists only the photo attachments.
	Photos []Photo `json:"photos,omitempty"`
	// All lists every attachment in display order.
	All []MediaItem `json:"all,omitempty"`
}

// Tweet represents a tweet as returned by the fxtwitter status endpoint.
type Tweet struct {
	// ID is the unique identifier of the tweet.
	ID string `json:"id"`
	// URL is the permalink of the tweet.
	URL string `json:"url"`
	// Text is the full text of the tweet.
	Text string `json:"text"`
	// CreatedAt is the creation time, e.g. "Wed Oct 05 20:32:04 +0000 2022".
	CreatedAt string `json:"created_at"`
	// CreatedTimestamp is the creation time in Unix epoch seconds.
	CreatedTimestamp int64 `json:"created_timestamp,omitempty"`
	// Author is the author of the tweet.
	Author Author `json:"author"`
	// Replies is the number of replies.
	Replies int `json:"replies"`
	// Retweets is the number of retweets.
	Retweets int `json:"retweets"`
	// Likes is the number of likes.
	Likes int `json:"likes"`
	// Media is nil when the tweet has no attachments.
	Media *Media `json:"media,omitempty"`
	// ReplyingTo is the handle of the parent tweet's author, if any.
	ReplyingTo *string `json:"replying_to"`
	// ReplyingToStatus is the ID of the parent tweet, if any.
	ReplyingToStatus *string `json:"replying_to_status"`
}

// PhotoURLs returns the photo URLs in attachment order. It never returns nil.
func (t *Tweet) PhotoURLs() []string {
	urls := []string{}
	if t.Media == nil {
		return urls
	}
	for _, p := range t.Media.Photos {
		if p.URL != "" {
			urls = append(urls, p.URL)
		}
	}
	return urls
}

// HasMedia reports whether the tweet carries any attachment.
func (t *Tweet) HasMedia() bool {
	return t.Media != nil && len(t.Media.All) > 0
}

// MediaType returns the type of the first attachment, or MediaNone.
func (t *Tweet) MediaType() string {
	if !t.HasMedia() {
		return MediaNone
	}
	return t.Media.All[0].Type
}

// IsReply reports whether the tweet declares a parent author.
func (t *Tweet) IsReply() bool {
	return t.ReplyingTo != nil
}

// ParentID returns the parent tweet ID, or "" for a root tweet.
func (t *Tweet) ParentID() string {
	if t.ReplyingToStatus == nil {
		return ""
	}
	return *t.ReplyingToStatus
}

// ParentAuthor returns the parent tweet's author handle, or "" when the API omitted it.
func (t *Tweet) ParentAuthor() string {
	if t.ReplyingTo == nil {
		return ""
	}
	return *t.ReplyingTo
}
