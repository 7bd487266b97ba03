package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ChatRequest is one turn submitted to the async assistant.
type ChatRequest struct {
	UserID    string
	Message   string
	SessionID string
}

// AsyncChatResult carries the outcome of an asynchronous turn.
type AsyncChatResult struct {
	// RequestID identifies the turn in logs.
	RequestID string

	Result *ChatResult
	Error  error
}

// AsyncAssistant runs turns in goroutines.
//
// All async methods return channels that receive the result when the turn
// completes. Wait blocks until every started turn has finished.
//
// Example:
//
//	async, _ := core.NewAsyncAssistant(config)
//	defer async.Close()
//
//	res := <-async.ChatAsync(ctx, "user_001", "Merhaba")
//	if res.Error != nil {
//	    log.Fatal(res.Error)
//	}
type AsyncAssistant struct {
	*Assistant
	wg sync.WaitGroup
}

// NewAsyncAssistant creates an asynchronous assistant.
func NewAsyncAssistant(cfg *Config, opts ...Option) (*AsyncAssistant, error) {
	a, err := NewAssistant(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncAssistant{Assistant: a}, nil
}

// ChatAsync runs one turn in a separate goroutine.
//
// Returns:
//   - <-chan *AsyncChatResult: receives exactly one result, then closes
func (aa *AsyncAssistant) ChatAsync(ctx context.Context, userID, message string, opts ...ChatOption) <-chan *AsyncChatResult {
	resultChan := make(chan *AsyncChatResult, 1)
	requestID := uuid.NewString()
	aa.wg.Add(1)

	go func() {
		defer aa.wg.Done()
		defer close(resultChan)
		result, err := aa.Chat(ctx, userID, message, opts...)
		resultChan <- &AsyncChatResult{RequestID: requestID, Result: result, Error: err}
	}()

	return resultChan
}

// ChatBatch runs independent turns concurrently, at most limit at a time
// (limit <= 0 means unbounded). Results keep the order of reqs; a failed
// turn does not cancel the others.
func (aa *AsyncAssistant) ChatBatch(ctx context.Context, reqs []ChatRequest, limit int) []*AsyncChatResult {
	results := make([]*AsyncChatResult, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			result, err := aa.Chat(ctx, req.UserID, req.Message, WithSessionID(req.SessionID))
			results[i] = &AsyncChatResult{RequestID: uuid.NewString(), Result: result, Error: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Wait blocks until all turns started with ChatAsync have finished.
func (aa *AsyncAssistant) Wait() {
	aa.wg.Wait()
}

// Close waits for pending turns and closes the assistant.
func (aa *AsyncAssistant) Close() error {
	aa.Wait()
	return aa.Assistant.Close()
}
