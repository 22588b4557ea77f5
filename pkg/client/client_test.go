package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/internal/fxtest"
	"github.com/perpetuallyhorni/fxthreads/pkg/config"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage/sqlite"
)

type fixture struct {
	srv    *fxtest.Server
	db     *sqlite.DB
	cfg    config.Config
	client *Client
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	srv := fxtest.New()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "twitter_bookmarks.db"))
	if err != nil {
		t.Fatalf("failed to open database: %s", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default(filepath.Join(dir, "output_data"))
	cfg.APIURL = srv.URL
	cfg.HopDelayMin, cfg.HopDelayMax, cfg.BookmarkDelay = 0, 0, 0
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, db, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return &fixture{srv: srv, db: db, cfg: cfg, client: c}
}

func (f *fixture) bookmark(t *testing.T, id, user, timestamp string) {
	t.Helper()
	if _, err := f.db.Conn.Exec(`INSERT INTO tweets (tweet_id, user_id, text, timestamp, url) VALUES (?, ?, ?, ?, ?)`,
		id, user, "exported "+id, timestamp, "https://x.com/"+user+"/status/"+id); err != nil {
		t.Fatalf("failed to seed tweet: %s", err)
	}
	if _, err := f.db.Conn.Exec(`INSERT INTO bookmarks (tweet_id) VALUES (?)`, id); err != nil {
		t.Fatalf("failed to seed bookmark: %s", err)
	}
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.db.Conn.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %s", table, err)
	}
	return n
}

// seedThread serves the two tweet thread 90 <- 100 with one photo each.
func seedThread(f *fixture) {
	x := f.srv.AddImage("x.jpg", []byte("x-bytes"))
	y := f.srv.AddImage("y.jpg", []byte("y-bytes"))
	f.srv.AddTweet(fxtest.Root("90", "bob", "root of the thread", x))
	f.srv.AddTweet(fxtest.Reply("100", "alice", "reply\nwith newline", "90", "bob", y))
}

func TestRetrieveBookmarksThread(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	var calls int
	summary, err := f.client.RetrieveBookmarks(context.Background(), func(current, total int, _ string) {
		calls++
		if current != 1 || total != 1 {
			t.Errorf("progress = %d/%d", current, total)
		}
	})
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	want := Summary{Pending: 1, Processed: 1, Retrieved: 1, Tweets: 2, Images: 2, Threads: 1}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}
	if calls != 1 {
		t.Errorf("progress called %d times", calls)
	}

	threadDir := f.cfg.ThreadDir("90")
	for name, body := range map[string]string{"90_x.jpg": "x-bytes", "100_y.jpg": "y-bytes"} {
		got, err := os.ReadFile(filepath.Join(threadDir, name))
		if err != nil {
			t.Errorf("image %s: %s", name, err)
			continue
		}
		if string(got) != body {
			t.Errorf("image %s = %q", name, got)
		}
	}

	raw, err := os.ReadFile(filepath.Join(threadDir, ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %s", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %s", err)
	}
	if manifest.ConversationID != "90" || manifest.TweetCount != 2 || len(manifest.Tweets) != 2 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if manifest.Tweets[0].ID != "90" || manifest.Tweets[1].ID != "100" || manifest.Tweets[1].Author != "alice" {
		t.Errorf("manifest tweets out of order: %+v", manifest.Tweets)
	}
	if len(manifest.Tweets[0].Images) != 1 || manifest.Tweets[0].Images[0] != f.srv.ImageURL("x.jpg") {
		t.Errorf("manifest images = %v", manifest.Tweets[0].Images)
	}

	if n := f.count(t, "images"); n != 2 {
		t.Errorf("images rows = %d, want 2", n)
	}
	if n := f.count(t, "retrieval_log"); n != 1 {
		t.Errorf("retrieval_log rows = %d, want 1", n)
	}
	var localPath string
	if err := f.db.Conn.Get(&localPath, `SELECT local_path FROM images WHERE tweet_id = '100'`); err != nil {
		t.Fatalf("select image: %s", err)
	}
	if localPath != "threads/90/100_y.jpg" {
		t.Errorf("local_path = %q", localPath)
	}

	tweets, err := f.db.ThreadedTweets()
	if err != nil {
		t.Fatalf("ThreadedTweets: %s", err)
	}
	if len(tweets) != 2 {
		t.Fatalf("threaded tweets = %d", len(tweets))
	}
	for _, tw := range tweets {
		if tw.ConversationID == nil || *tw.ConversationID != "90" {
			t.Errorf("tweet %s conversation = %v", tw.ID, tw.ConversationID)
		}
		switch tw.ID {
		case "100":
			if tw.ParentTweetID == nil || *tw.ParentTweetID != "90" || !tw.IsReply || tw.Text != "reply\nwith newline" {
				t.Errorf("reply row = %+v", tw)
			}
		case "90":
			if tw.ParentTweetID != nil || tw.IsReply || !tw.HasMedia || tw.MediaType != "photo" {
				t.Errorf("root row = %+v", tw)
			}
		}
	}

	var index map[string][]storage.TweetRecord
	raw, err = os.ReadFile(f.cfg.ThreadIndexPath())
	if err != nil {
		t.Fatalf("read index: %s", err)
	}
	if err := json.Unmarshal(raw, &index); err != nil {
		t.Fatalf("decode index: %s", err)
	}
	if g := index["90"]; len(g) != 2 {
		t.Errorf("index conversation 90 = %+v", g)
	}
	m := f.client.Metrics()
	if got := testutil.ToFloat64(m.Bookmarks.WithLabelValues("retrieved")); got != 1 {
		t.Errorf("retrieved bookmarks metric = %v", got)
	}
	if got := testutil.ToFloat64(m.ImagesDownloaded); got != 2 {
		t.Errorf("downloaded images metric = %v", got)
	}
	if got := testutil.ToFloat64(m.TweetsFetched); got != 2 {
		t.Errorf("fetched tweets metric = %v", got)
	}
}

func TestRetrieveBookmarksIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	if _, err := f.client.RetrieveBookmarks(context.Background(), nil); err != nil {
		t.Fatalf("first run: %s", err)
	}
	hits := f.srv.TotalHits()
	summary, err := f.client.RetrieveBookmarks(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %s", err)
	}
	if summary.Pending != 0 || summary.Processed != 0 || summary.Threads != 1 {
		t.Errorf("second summary = %+v", *summary)
	}
	if f.srv.TotalHits() != hits {
		t.Errorf("second run fetched tweets again")
	}
	if n := f.count(t, "retrieval_log"); n != 1 {
		t.Errorf("retrieval_log rows = %d", n)
	}
}

func TestProcessBookmarkSkipsExistingImages(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	bm := storage.Bookmark{TweetID: "100", UserID: "alice"}

	if out := f.client.ProcessBookmark(context.Background(), bm); out.Status != StatusRetrieved || out.Images != 2 {
		t.Fatalf("first outcome = %+v", out)
	}
	out := f.client.ProcessBookmark(context.Background(), bm)
	if out.Status != StatusRetrieved || out.Images != 0 || out.Tweets != 2 {
		t.Errorf("second outcome = %+v", out)
	}
	if f.srv.ImageHits("x.jpg") != 1 || f.srv.ImageHits("y.jpg") != 1 {
		t.Errorf("images downloaded again: x=%d y=%d", f.srv.ImageHits("x.jpg"), f.srv.ImageHits("y.jpg"))
	}
	if ok, _ := f.db.IsRetrieved("100"); ok {
		t.Error("ProcessBookmark must not touch the ledger")
	}
}

func TestProcessBookmarkImageFailureContinues(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.AddTweet(fxtest.Root("7", "carol", "missing image", f.srv.ImageURL("gone.jpg")))

	out := f.client.ProcessBookmark(context.Background(), storage.Bookmark{TweetID: "7", UserID: "carol"})
	if out.Status != StatusRetrieved || out.Images != 0 || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if ok, _ := fxtwitter.Exists(filepath.Join(f.cfg.ThreadDir("7"), "7_gone.jpg")); ok {
		t.Error("failed download left a file behind")
	}
	if n := f.count(t, "images"); n != 0 {
		t.Errorf("images rows = %d", n)
	}
}

func TestRetrieveBookmarksNotFoundIsRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Fail("404", http.StatusNotFound)
	f.bookmark(t, "404", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	summary, err := f.client.RetrieveBookmarks(context.Background(), nil)
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	if summary.NotFound != 1 || summary.Processed != 1 || summary.Threads != 0 {
		t.Errorf("summary = %+v", *summary)
	}
	if ok, _ := f.db.IsRetrieved("404"); !ok {
		t.Error("bookmark not recorded")
	}
	if n := f.count(t, "images"); n != 0 {
		t.Errorf("images rows = %d", n)
	}
	if _, err := os.Stat(f.cfg.ThreadIndexPath()); err != nil {
		t.Errorf("index not written: %s", err)
	}
}

func TestRetrieveBookmarksFailedIsRecorded(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")
	// A regular file where the threads directory belongs.
	if err := os.MkdirAll(f.cfg.OutputPath, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.cfg.ThreadsDir(), []byte("blocked"), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := f.client.RetrieveBookmarks(context.Background(), nil)
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v", *summary)
	}
	if ok, _ := f.db.IsRetrieved("100"); !ok {
		t.Error("failed bookmark not recorded")
	}
}

func TestRetrieveBookmarksDiskSpaceHalts(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.MinFreeSpace = 1 << 62 })
	seedThread(f)
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	summary, err := f.client.RetrieveBookmarks(context.Background(), nil)
	if !errors.Is(err, fxtwitter.ErrDiskSpace) {
		t.Fatalf("err = %v, want ErrDiskSpace", err)
	}
	if summary.Processed != 0 {
		t.Errorf("summary = %+v", *summary)
	}
	if ok, _ := f.db.IsRetrieved("100"); ok {
		t.Error("bookmark recorded despite disk space failure")
	}
}

func TestRetrieveBookmarksInterrupted(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := f.client.RetrieveBookmarks(ctx, nil)
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	if !summary.Interrupted || summary.Processed != 0 || summary.Pending != 1 {
		t.Errorf("summary = %+v", *summary)
	}
	if f.srv.TotalHits() != 0 {
		t.Errorf("fetched %d tweets after cancellation", f.srv.TotalHits())
	}
	if ok, _ := f.db.IsRetrieved("100"); ok {
		t.Error("unprocessed bookmark recorded")
	}
	if _, err := os.Stat(f.cfg.ThreadIndexPath()); err != nil {
		t.Errorf("index not written on interrupt: %s", err)
	}
}

func TestRetrieveBookmarksInterruptedMidRun(t *testing.T) {
	f := newFixture(t, nil)
	seedThread(f)
	f.srv.AddTweet(fxtest.Root("3", "carol", "never reached"))
	f.bookmark(t, "100", "alice", "Wed Oct 05 20:32:04 +0000 2022")
	f.bookmark(t, "3", "carol", "Thu Oct 06 20:32:04 +0000 2022")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	summary, err := f.client.RetrieveBookmarks(ctx, func(current, _ int, _ string) {
		// Interrupt while the first bookmark is about to be processed.
		if current == 1 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	want := Summary{Pending: 2, Processed: 1, Retrieved: 1, Tweets: 2, Images: 2, Threads: 1, Interrupted: true}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}
	if ok, _ := f.db.IsRetrieved("100"); !ok {
		t.Error("bookmark in flight was not recorded")
	}
	if ok, _ := f.db.IsRetrieved("3"); ok {
		t.Error("bookmark after the interrupt was recorded")
	}
	if hits := f.srv.Hits("3"); hits != 0 {
		t.Errorf("tweet 3 fetched %d times after the interrupt", hits)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.ThreadDir("90"), ManifestName)); err != nil {
		t.Errorf("manifest of the finished thread missing: %s", err)
	}
	if _, err := os.Stat(f.cfg.ThreadIndexPath()); err != nil {
		t.Errorf("index not written on interrupt: %s", err)
	}
}

func TestRetrieveBookmarksOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.AddTweet(fxtest.Root("1", "alice", "older"))
	f.srv.AddTweet(fxtest.Root("2", "alice", "newer"))
	f.bookmark(t, "2", "alice", "Thu Oct 06 20:32:04 +0000 2022")
	f.bookmark(t, "1", "alice", "Wed Oct 05 20:32:04 +0000 2022")

	var order []string
	_, err := f.client.RetrieveBookmarks(context.Background(), func(_, _ int, msg string) {
		order = append(order, msg)
	})
	if err != nil {
		t.Fatalf("RetrieveBookmarks: %s", err)
	}
	if len(order) != 2 || order[0] != "Bookmark 1" || order[1] != "Bookmark 2" {
		t.Errorf("order = %v", order)
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	cfg := config.Default(t.TempDir())
	if _, err := New(cfg, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for nil database")
	}
	cfg.APIURL = ""
	if _, err := New(cfg, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid config")
	}
}
