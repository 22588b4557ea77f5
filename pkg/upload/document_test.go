package upload

import (
	"strings"
	"testing"

	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

func TestTitle(t *testing.T) {
	long := strings.Repeat("a", 79) + "\nbcdef"
	tests := []struct {
		username, text, want string
	}{
		{"alice", "hello", "@alice — hello"},
		{"@alice", "hello", "@alice — hello"},
		{"bob", "line one\nline two", "@bob — line one line two"},
		{"bob", long, "@bob — " + strings.Repeat("a", 79) + " "},
		{"bob", strings.Repeat("é", 100), "@bob — " + strings.Repeat("é", 80)},
		{"bob", "", "@bob — "},
	}
	for _, tt := range tests {
		if got := Title(tt.username, tt.text); got != tt.want {
			t.Errorf("Title(%q, %q) = %q, want %q", tt.username, tt.text, got, tt.want)
		}
	}
}

func TestBuildDocumentKeepsFullText(t *testing.T) {
	text := strings.Repeat("word ", 40)
	doc := BuildDocument(storage.BookmarkDocument{
		TweetID: "1", Username: "@alice", DisplayName: "Alice", Text: text,
		LikesCount: 3, HasMedia: true, MediaType: "photo", IsReply: true,
	})
	if doc.Text != text {
		t.Errorf("body truncated")
	}
	if got := len([]rune(strings.TrimPrefix(doc.Title, "@alice — "))); got != 80 {
		t.Errorf("title text has %d characters", got)
	}
	m := doc.Metadata
	if m.TweetID != "1" || m.Username != "@alice" || m.LikesCount != 3 || !m.HasMedia || !m.IsReply || m.MediaType != "photo" {
		t.Errorf("metadata = %+v", m)
	}
}
