package client

import (
	"errors"
	"fmt"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/pkg/metrics"
)

// Status is the result class of processing one bookmark.
type Status int

const (
	// StatusRetrieved means the chain was walked, persisted and its manifest written.
	StatusRetrieved Status = iota
	// StatusNotFound means the bookmarked tweet itself could not be fetched.
	StatusNotFound
	// StatusFailed means processing stopped on a local error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRetrieved:
		return metrics.OutcomeRetrieved
	case StatusNotFound:
		return metrics.OutcomeNotFound
	case StatusFailed:
		return metrics.OutcomeFailed
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of processing one bookmark. The caller decides what to
// record from it; ProcessBookmark never touches the retrieval ledger.
type Outcome struct {
	BookmarkID     string
	Status         Status
	ConversationID string // ConversationID is empty unless at least one tweet was fetched.
	Tweets         int
	Images         int // Images counts new downloads only.
	Err            error
}

func (o Outcome) fail(err error) Outcome {
	o.Status = StatusFailed
	o.Err = err
	return o
}

// Halts reports whether the run must stop without recording this bookmark,
// so it is retried once the condition is fixed.
func (o Outcome) Halts() bool {
	return errors.Is(o.Err, fxtwitter.ErrDiskSpace)
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Pending     int // Pending is the number of bookmarks found at the start.
	Processed   int // Processed counts bookmarks recorded in the ledger.
	Retrieved   int
	NotFound    int
	Failed      int
	Tweets      int
	Images      int
	Threads     int  // Threads is the number of conversations in the exported index.
	Interrupted bool // Interrupted is set when the run stopped early on cancellation.
}

func (s *Summary) record(o Outcome) {
	s.Processed++
	s.Tweets += o.Tweets
	s.Images += o.Images
	switch o.Status {
	case StatusRetrieved:
		s.Retrieved++
	case StatusNotFound:
		s.NotFound++
	default:
		s.Failed++
	}
}
