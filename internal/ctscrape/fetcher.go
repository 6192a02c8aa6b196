package ctscrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
)

// FetchCmdKind tags the two messages a Runner ever sends a Fetcher.
type FetchCmdKind int

const (
	CmdFetchRange FetchCmdKind = iota
	CmdStop
)

// FetchCmd is sent by the Runner to exactly one Fetcher's command
// channel at a time.
type FetchCmd struct {
	Kind  FetchCmdKind
	Start uint64
	End   uint64
}

// Fetcher is one long-lived worker bound to a numeric id, draining
// whatever ranges the Runner assigns it until told to stop.
type Fetcher struct {
	id         int
	client     *http.Client
	entriesURL string
	userAgent  string
	status     chan<- FetchStatus
	sink       *Handle
	retryer    *Retryer
}

// NewFetcher constructs a Fetcher bound to worker id n.
func NewFetcher(id int, client *http.Client, entriesURL, userAgent string, status chan<- FetchStatus, sink *Handle) *Fetcher {
	return &Fetcher{
		id:         id,
		client:     client,
		entriesURL: entriesURL,
		userAgent:  userAgent,
		status:     status,
		sink:       sink,
		retryer:    NewRetryer(),
	}
}

// Run is the fetcher's command loop: it blocks on cmds until a
// FetchRange or Stop command arrives. ctx cancellation (the Runner
// shutting down, whether cleanly or on another fetcher's fatal error)
// unblocks both an idle wait on cmds and a drain in progress, so the
// fetcher never keeps a shutting-down Runner waiting on g.Wait().
func (f *Fetcher) Run(ctx context.Context, cmds <-chan FetchCmd) {
	for {
		select {
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			switch cmd.Kind {
			case CmdFetchRange:
				f.drain(ctx, cmd.Start, cmd.End)
				select {
				case f.status <- FetchStatus{WorkerID: f.id, Kind: FetchComplete}:
				case <-ctx.Done():
					return
				}
			case CmdStop:
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// drain works a single batch to exhaustion, one get-entries round-trip
// at a time, re-requesting whatever tail the server didn't return.
func (f *Fetcher) drain(ctx context.Context, start, end uint64) {
	for start <= end {
		if ctx.Err() != nil {
			return
		}

		entries, fatal := f.fetchOnce(ctx, start, end)
		if fatal != nil {
			f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchFatal, Start: start, End: end, Err: fatal})
			return
		}
		if entries == nil {
			// retryable failure already reported by fetchOnce; loop and
			// retry the same range.
			continue
		}
		if len(entries) == 0 {
			// The server returned no entries at all for a non-empty
			// range: drop the remainder of this range rather than
			// spin forever re-requesting it. This is not a Success — it's
			// less work delivered than asked for, so it must not drive
			// pool growth.
			log.Printf("fetcher %d: get-entries returned 0 entries for [%d, %d]; dropping remainder of range", f.id, start, end)
			f.retryer.Reset()
			return
		}

		for i, e := range entries {
			if ok := f.sink.Cast(entryRequest{
				entryNumber: start + uint64(i),
				entry:       RawEntry{LeafInput: e.LeafInput, ExtraData: e.ExtraData},
			}); !ok {
				sinkErr := f.sink.Err()
				if sinkErr == nil {
					sinkErr = internalErr("sink terminated unexpectedly")
				}
				f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchFatal, Start: start, End: end, Err: sinkErr})
				return
			}
		}
		f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchSuccess, Start: start, End: start + uint64(len(entries)) - 1})
		f.retryer.Reset()
		start += uint64(len(entries))
	}
}

// reportStatus sends st to the Runner, but gives up if ctx is canceled
// first — during shutdown the Runner may stop reading statusCh before
// every in-flight fetcher has noticed, and a blocked send here must not
// outlive the scrape.
func (f *Fetcher) reportStatus(ctx context.Context, st FetchStatus) {
	select {
	case f.status <- st:
	case <-ctx.Done():
	}
}

type getEntriesEntry struct {
	LeafInput []byte `json:"leaf_input"`
	ExtraData []byte `json:"extra_data"`
}

type getEntriesResponse struct {
	Entries []getEntriesEntry `json:"entries"`
}

// fetchOnce issues one GET get-entries?start=start&end=end and classifies
// the outcome. A nil, nil return means a retryable failure was already
// reported and the caller should retry the same range. A non-nil error
// return means the batch is fatally broken and must be abandoned.
func (f *Fetcher) fetchOnce(ctx context.Context, start, end uint64) ([]getEntriesEntry, error) {
	url := fmt.Sprintf("%s?start=%d&end=%d", f.entriesURL, start, end)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, urlErr("building get-entries request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchFailure, Start: start, End: end, Err: err})
		if rerr := f.retryer.Failure(); rerr != nil {
			return nil, rerr
		}
		return nil, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body getEntriesResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, jsonParseErr("get-entries response body", err)
		}
		if body.Entries == nil {
			// "entries": null or a missing key is an empty response, not a
			// retryable failure.
			body.Entries = []getEntriesEntry{}
		}
		return body.Entries, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchFailure, Start: start, End: end, Err: errors.New("429 Too Many Requests")})
		if rerr := f.retryer.Failure(); rerr != nil {
			return nil, rerr
		}
		return nil, nil

	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(resp.Body)
		log.Printf("fetcher %d: get-entries server error %d: %s", f.id, resp.StatusCode, string(b))
		f.reportStatus(ctx, FetchStatus{WorkerID: f.id, Kind: FetchFailure, Start: start, End: end, Err: fmt.Errorf("server error %d", resp.StatusCode)})
		if rerr := f.retryer.Failure(); rerr != nil {
			return nil, rerr
		}
		return nil, nil

	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, requestErr(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b)))
	}
}
