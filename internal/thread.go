package fxtwitter

import (
	"context"
	"slices"
)

// TweetFetcher fetches a single tweet by author handle and ID.
type TweetFetcher interface {
	GetTweet(ctx context.Context, author, id string) (*Tweet, error)
}

// Waiter paces successive requests. Wait returns an error when pacing was cancelled.
type Waiter interface {
	Wait() error
}

// WalkOpt contains options for walking a reply chain.
type WalkOpt struct {
	// Pacer is waited on before every fetch. The first Wait is expected to return immediately.
	Pacer Waiter
	// OnFetch is called after every successful fetch.
	OnFetch func(tweet *Tweet)
	// OnError is called when a fetch fails and the walk stops.
	OnError func(id string, err error)
	// OnCycle is called when a parent pointer leads back to an already visited tweet.
	OnCycle func(id string)
}

type noWait struct{}

func (noWait) Wait() error { return nil }

// Defaults sets default values for the WalkOpt if they are not already set.
func (opt *WalkOpt) Defaults() *WalkOpt {
	if opt == nil {
		opt = &WalkOpt{}
	}
	if opt.Pacer == nil {
		opt.Pacer = noWait{}
	}
	if opt.OnFetch == nil {
		opt.OnFetch = func(*Tweet) {}
	}
	if opt.OnError == nil {
		opt.OnError = func(string, error) {}
	}
	if opt.OnCycle == nil {
		opt.OnCycle = func(string) {}
	}
	return opt
}

// WalkThread follows parent pointers from the tweet (author, id) up to the conversation root and
// returns the chain oldest first. The walk stops at the root, at the first failed fetch, or when a
// tweet would be visited twice; whatever was collected so far is returned. An empty chain means the
// starting tweet itself could not be fetched.
func WalkThread(ctx context.Context, src TweetFetcher, author, id string, opt *WalkOpt) []Tweet {
	opt = opt.Defaults()
	var chain []Tweet
	visited := make(map[string]struct{})
	for id != "" {
		if _, seen := visited[id]; seen {
			opt.OnCycle(id)
			break
		}
		visited[id] = struct{}{}

		if err := opt.Pacer.Wait(); err != nil {
			opt.OnError(id, err)
			break
		}
		tweet, err := src.GetTweet(ctx, author, id)
		if err != nil {
			opt.OnError(id, err)
			break
		}
		opt.OnFetch(tweet)
		chain = append(chain, *tweet)

		id = tweet.ParentID()
		if parent := tweet.ParentAuthor(); parent != "" {
			author = parent
		}
	}
	slices.Reverse(chain)
	return chain
}
