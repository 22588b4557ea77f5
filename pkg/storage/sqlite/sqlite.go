package sqlite

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

//go:embed queries/*.sql
//go:embed queries/*.sql.tpl
var queryFS embed.FS

// DB is a SQLite implementation of the storage.Storer interface.
type DB struct {
	Conn *sqlx.DB // The raw database connection, exposed for extensibility.
}

var _ storage.Storer = (*DB)(nil)

// New opens the SQLite database at path and brings its schema up to the current version.
// It returns a concrete *DB type to allow for extension.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer, one statement at a time.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{Conn: conn}
	if err := instance.migrate(); err != nil {
		_ = instance.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return instance, nil
}

// getQuery reads a raw SQL query from the embedded filesystem.
func getQuery(name string) (string, error) {
	b, err := queryFS.ReadFile("queries/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded query %s: %w", name, err)
	}
	return string(b), nil
}

// getParsedQuery parses and executes a SQL template from the embedded filesystem.
func getParsedQuery(templateName string, data any) (string, error) {
	t, err := template.ParseFS(queryFS, "queries/"+templateName)
	if err != nil {
		return "", fmt.Errorf("failed to parse embedded query template %s: %w", templateName, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute embedded query template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// UnprocessedBookmarks returns bookmarks without a retrieval record, oldest tweet first.
func (db *DB) UnprocessedBookmarks() ([]storage.Bookmark, error) {
	query, err := getQuery("unprocessed_bookmarks.sql")
	if err != nil {
		return nil, err
	}
	var bookmarks []storage.Bookmark
	if err := db.Conn.Select(&bookmarks, query); err != nil {
		return nil, fmt.Errorf("failed to query unprocessed bookmarks: %w", err)
	}
	storage.SortBookmarks(bookmarks)
	return bookmarks, nil
}

// UpsertTweet inserts or fully replaces a tweet row.
func (db *DB) UpsertTweet(t storage.TweetRecord) error {
	query, err := getQuery("upsert_tweet.sql")
	if err != nil {
		return err
	}
	if _, err := db.Conn.NamedExec(query, t); err != nil {
		return fmt.Errorf("failed to upsert tweet %s: %w", t.ID, err)
	}
	return nil
}

// UpsertUser inserts or fully replaces a user row.
func (db *DB) UpsertUser(u storage.UserRecord) error {
	query, err := getQuery("upsert_user.sql")
	if err != nil {
		return err
	}
	if _, err := db.Conn.NamedExec(query, u); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.UserID, err)
	}
	return nil
}

// SaveImage inserts or replaces the record of a downloaded image.
func (db *DB) SaveImage(img storage.ImageRecord) error {
	query, err := getQuery("save_image.sql")
	if err != nil {
		return err
	}
	if _, err := db.Conn.NamedExec(query, img); err != nil {
		return fmt.Errorf("failed to save image %s for tweet %s: %w", img.URL, img.TweetID, err)
	}
	return nil
}

// MarkRetrieved records a bookmark as attempted. Repeated calls are no-ops.
func (db *DB) MarkRetrieved(tweetID string) error {
	query, err := getQuery("mark_retrieved.sql")
	if err != nil {
		return err
	}
	if _, err := db.Conn.Exec(query, tweetID); err != nil {
		return fmt.Errorf("failed to mark bookmark %s as retrieved: %w", tweetID, err)
	}
	return nil
}

// IsRetrieved reports whether a bookmark has a retrieval record.
func (db *DB) IsRetrieved(tweetID string) (bool, error) {
	query, err := getQuery("is_retrieved.sql")
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.Conn.Get(&exists, query, tweetID); err != nil {
		return false, fmt.Errorf("failed to check retrieval record for %s: %w", tweetID, err)
	}
	return exists, nil
}

// ThreadedTweets returns every tweet carrying a conversation ID.
func (db *DB) ThreadedTweets() ([]storage.TweetRecord, error) {
	query, err := getQuery("threaded_tweets.sql")
	if err != nil {
		return nil, err
	}
	var tweets []storage.TweetRecord
	if err := db.Conn.Select(&tweets, query); err != nil {
		return nil, fmt.Errorf("failed to query threaded tweets: %w", err)
	}
	return tweets, nil
}

// BookmarkDocuments returns all bookmarks joined with tweet and user metadata.
func (db *DB) BookmarkDocuments() ([]storage.BookmarkDocument, error) {
	query, err := getQuery("bookmark_documents.sql")
	if err != nil {
		return nil, err
	}
	var docs []storage.BookmarkDocument
	if err := db.Conn.Select(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to query bookmark documents: %w", err)
	}
	return docs, nil
}

// Stats returns row counts.
func (db *DB) Stats() (storage.Stats, error) {
	query, err := getQuery("stats.sql")
	if err != nil {
		return storage.Stats{}, err
	}
	var s storage.Stats
	if err := db.Conn.Get(&s, query); err != nil {
		return storage.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.Conn.Close()
}
