// Package fxtest provides an in-process fake of the fxtwitter status API and an image host.
package fxtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
)

// Server is a fake fxtwitter API. Tweets are served under /{author}/status/{id} and
// images under /media/{name}.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	tweets    map[string]fxtwitter.Tweet
	failures  map[string]int // id -> HTTP status to answer with
	malformed map[string]bool
	images    map[string][]byte
	hits      map[string]int // tweet id -> status requests
	authors   map[string]string
	imageHits map[string]int
}

// New starts a fake server. Close it with Server.Close.
func New() *Server {
	s := &Server{
		tweets:    make(map[string]fxtwitter.Tweet),
		failures:  make(map[string]int),
		malformed: make(map[string]bool),
		images:    make(map[string][]byte),
		hits:      make(map[string]int),
		authors:   make(map[string]string),
		imageHits: make(map[string]int),
	}
	r := chi.NewRouter()
	r.Get("/{author}/status/{id}", s.handleStatus)
	r.Get("/media/{name}", s.handleImage)
	r.Head("/media/{name}", s.handleImage)
	s.Server = httptest.NewServer(r)
	return s
}

// AddTweet registers a tweet to be served by its ID.
func (s *Server) AddTweet(t fxtwitter.Tweet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[t.ID] = t
}

// AddTweetAs serves t for requests of id, whatever t.ID says.
func (s *Server) AddTweetAs(id string, t fxtwitter.Tweet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[id] = t
}

// Fail makes requests for id answer with the given HTTP status.
func (s *Server) Fail(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = status
}

// Malform makes requests for id answer 200 with an undecodable body.
func (s *Server) Malform(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[id] = true
}

// AddImage registers image bytes and returns the absolute URL serving them.
func (s *Server) AddImage(name string, body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[name] = body
	return s.ImageURL(name)
}

// ImageURL returns the URL of an image whether or not it is registered.
func (s *Server) ImageURL(name string) string {
	return fmt.Sprintf("%s/media/%s", s.URL, name)
}

// Hits returns the number of status requests made for id.
func (s *Server) Hits(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[id]
}

// LastAuthor returns the author handle used in the most recent request for id.
func (s *Server) LastAuthor(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authors[id]
}

// TotalHits returns the number of status requests made for any tweet.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// ImageHits returns the number of GET requests made for an image.
func (s *Server) ImageHits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageHits[name]
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	s.hits[id]++
	s.authors[id] = chi.URLParam(r, "author")
	status, failing := s.failures[id]
	malformed := s.malformed[id]
	tweet, ok := s.tweets[id]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case failing:
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": http.StatusText(status), "tweet": nil})
	case malformed:
		_, _ = w.Write([]byte(`{"code": 200, "tweet": {`))
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 404, "message": "NOT_FOUND", "tweet": nil})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "OK", "tweet": tweet})
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	body, ok := s.images[name]
	if r.Method == http.MethodGet {
		s.imageHits[name]++
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// Reply builds a tweet replying to parentID by parentAuthor. An empty parentAuthor leaves
// replying_to unset, as the API sometimes does.
func Reply(id, author, text, parentID, parentAuthor string, photos ...string) fxtwitter.Tweet {
	t := Root(id, author, text, photos...)
	t.ReplyingToStatus = &parentID
	if parentAuthor != "" {
		t.ReplyingTo = &parentAuthor
	}
	return t
}

// Root builds a tweet without a parent.
func Root(id, author, text string, photos ...string) fxtwitter.Tweet {
	t := fxtwitter.Tweet{
		ID:        id,
		URL:       fmt.Sprintf("https://x.com/%s/status/%s", author, id),
		Text:      text,
		CreatedAt: "Wed Oct 05 20:32:04 +0000 2022",
		Author:    fxtwitter.Author{ScreenName: author, Name: author + " display"},
		Likes:     3,
		Retweets:  2,
		Replies:   1,
	}
	if len(photos) > 0 {
		media := &fxtwitter.Media{}
		for _, p := range photos {
			media.Photos = append(media.Photos, fxtwitter.Photo{URL: p, Type: "photo"})
			media.All = append(media.All, fxtwitter.MediaItem{Type: "photo", URL: p})
		}
		t.Media = media
	}
	return t
}
