package fireblob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a point-in-time sample of an upload's byte position.
type Progress struct {
	// BytesTransferred is how many bytes the transport has consumed from
	// the source so far. Samples never decrease over a task's lifetime.
	BytesTransferred int64
	// TotalBytes is the source length as given to Put.
	TotalBytes int64
}

// UploadTask is a single upload in flight. Reference.Put creates it already
// running; a task maps to exactly one upload attempt and is not reusable.
//
// Each task runs two goroutines: the transfer itself and a sampler that
// publishes Progress events at the configured interval. Both end together
// when the transfer reaches a terminal state, at which point the sampler
// closes every subscriber channel. The last sample may trail the true byte
// position by up to one interval; no final "completed" event is
// synthesized.
type UploadTask struct {
	storage   *Storage
	targetURL string

	src         *countingReader
	total       int64
	contentType string

	mu       sync.Mutex
	subs     []chan Progress
	finished bool

	done   chan struct{}
	result string
	err    error
}

func newUploadTask(ctx context.Context, storage *Storage, targetURL, downloadURLBase string, src io.Reader, size int64, contentType string) *UploadTask {
	t := &UploadTask{
		storage:     storage,
		targetURL:   targetURL,
		src:         &countingReader{r: src},
		total:       size,
		contentType: contentType,
		done:        make(chan struct{}),
	}
	go t.run(ctx, downloadURLBase)
	go t.poll()
	return t
}

// TargetURL returns the upload endpoint this task posts to.
func (t *UploadTask) TargetURL() string { return t.targetURL }

// Done is closed once the task reaches a terminal state.
func (t *UploadTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx expires, then returns the
// resolved download URL. ctx only bounds the wait; aborting the upload
// itself is done through the context passed to Put.
func (t *UploadTask) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Progress registers and returns a new subscriber channel for this task's
// progress samples. The channel is closed when the task finishes; a slow
// receiver misses samples rather than slowing the upload. Calling Progress
// on a finished task returns an already-closed channel.
func (t *UploadTask) Progress() <-chan Progress {
	ch := make(chan Progress, 1)
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// run drives the transfer to a terminal state. It always completes, even on
// cancellation, which is what lets the sampler tie its lifetime to done.
func (t *UploadTask) run(ctx context.Context, downloadURLBase string) {
	result, err := t.upload(ctx, downloadURLBase)
	if err != nil && ctx.Err() != nil {
		// Canceled or timed out mid-flight. The configured policy decides
		// whether the caller sees the context error or an empty result.
		if t.storage.opts.StrictCancel {
			t.complete("", ctx.Err())
		} else {
			t.complete("", nil)
		}
		return
	}
	t.complete(result, err)
}

func (t *UploadTask) upload(ctx context.Context, downloadURLBase string) (string, error) {
	req, err := t.storage.newRequest(ctx, http.MethodPost, t.targetURL, t.src)
	if err != nil {
		return "", &StorageError{URL: t.targetURL, Body: NoBody, Err: err}
	}
	if t.total >= 0 {
		req.ContentLength = t.total
	}
	if t.contentType != "" {
		req.Header.Set("Content-Type", t.contentType)
	}

	status, body, err := t.storage.do(req)
	if err != nil {
		return "", err
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return "", &StorageError{
			URL:        t.targetURL,
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("decode upload response: %w", err),
		}
	}
	token := fields["downloadTokens"]
	if token == "" {
		return "", &StorageError{
			URL:        t.targetURL,
			StatusCode: status,
			Body:       body,
			Err:        ErrNoDownloadToken,
		}
	}
	return downloadURLBase + token, nil
}

func (t *UploadTask) complete(result string, err error) {
	t.result = result
	t.err = err
	close(t.done)
}

// poll publishes a sample every interval until the task ends, then closes
// all subscriber channels. run always closes done, so the sampler never
// outlives the transfer it reports on.
func (t *UploadTask) poll() {
	ticker := time.NewTicker(t.storage.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			t.finish()
			return
		case <-ticker.C:
			t.publish(Progress{
				BytesTransferred: t.src.count(),
				TotalBytes:       t.total,
			})
		}
	}
}

func (t *UploadTask) publish(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- p:
		default:
			// Drop the sample rather than block the sampler.
		}
	}
}

func (t *UploadTask) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

// countingReader tracks how far the transport has read into the source. The
// position lives in an atomic counter updated by Read itself, so the
// sampler never touches the underlying stream and a concurrent close of the
// stream cannot race with it.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n.Add(int64(n))
	}
	return n, err
}

func (c *countingReader) count() int64 { return c.n.Load() }
