package ctscrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	minBatchSize = 100
	maxBatchSize = 10000
	successStep  = 5
)

// RunConfig is the Runner's programmatic configuration — the core's side
// of the CLI surface, already parsed and validated by the caller.
type RunConfig struct {
	LogURL             string
	Offset             uint64
	Limit              uint64 // 0 means unbounded
	InitialFetchers    int
	MaxFetchers        int // 0 means use runtime.GOMAXPROCS(0)
	UserAgent          string
	HTTPClient         *http.Client
	Sink               *Handle
}

// RunStats summarizes one completed (or aborted) scrape.
type RunStats struct {
	STHRetrievedAt time.Time
	STHTimestamp   uint64
	STHTreeSize    uint64
	FetchedCount   uint64
}

type sthResponse struct {
	TreeSize          uint64 `json:"tree_size"`
	Timestamp         uint64 `json:"timestamp"`
	SHA256RootHash    []byte `json:"sha256_root_hash"`
	TreeHeadSignature []byte `json:"tree_head_signature"`
}

func fetchSTH(ctx context.Context, client *http.Client, sthURL, userAgent string) (*sthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sthURL, nil)
	if err != nil {
		return nil, urlErr("building get-sth request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, requestErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, requestErr(fmt.Errorf("get-sth returned status %d", resp.StatusCode))
	}

	var sth sthResponse
	if err := json.NewDecoder(resp.Body).Decode(&sth); err != nil {
		return nil, jsonParseErr("get-sth response body", err)
	}
	return &sth, nil
}

// Run fetches the STH once, partitions [offset, min(tree_size,
// offset+limit)) across an adaptively-grown pool of Fetchers, and blocks
// until every entry in range has been handed to the sink and the sink has
// been cleanly stopped.
func Run(ctx context.Context, cfg RunConfig) (*RunStats, error) {
	parsed, err := url.Parse(cfg.LogURL)
	if err != nil {
		return nil, urlErr("parsing log URL", err)
	}
	base := fixURL(parsed)
	sthURL := base.String() + "ct/v1/get-sth"
	entriesURL := base.String() + "ct/v1/get-entries"

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	sth, err := fetchSTH(ctx, client, sthURL, cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{
		STHRetrievedAt: time.Now(),
		STHTimestamp:   sth.Timestamp,
		STHTreeSize:    sth.TreeSize,
	}

	cfg.Sink.Cast(metadataRequest{sth: STH{
		TreeSize:          sth.TreeSize,
		Timestamp:         sth.Timestamp,
		SHA256RootHash:    sth.SHA256RootHash,
		TreeHeadSignature: sth.TreeHeadSignature,
	}})

	if cfg.Offset >= sth.TreeSize {
		if err := cfg.Sink.Stop(); err != nil {
			return stats, err
		}
		return stats, nil
	}

	upper := sth.TreeSize
	if cfg.Limit != 0 {
		sum := cfg.Offset + cfg.Limit
		if sum < cfg.Offset { // overflow: saturate
			sum = ^uint64(0)
		}
		upper = min(sum, sth.TreeSize)
	}
	lastEntry := upper - 1

	maxFetchers := cfg.MaxFetchers
	if maxFetchers <= 0 {
		maxFetchers = runtime.GOMAXPROCS(0)
		if maxFetchers < 1 {
			maxFetchers = 1
		}
	}
	poolSize := cfg.InitialFetchers
	if poolSize < 1 {
		poolSize = 1
	}
	if poolSize > maxFetchers {
		poolSize = maxFetchers
	}

	nextEntry := cfg.Offset
	nextBatch := func() (FetchCmd, bool) {
		if nextEntry > lastEntry {
			return FetchCmd{}, false
		}
		remaining := lastEntry - nextEntry + 1
		batchSize := remaining / uint64(maxFetchers)
		batchSize = max(batchSize, uint64(minBatchSize))
		batchSize = min(batchSize, uint64(maxBatchSize))
		end := min(nextEntry+batchSize-1, lastEntry)
		cmd := FetchCmd{Kind: CmdFetchRange, Start: nextEntry, End: end}
		nextEntry = end + 1
		return cmd, true
	}

	statusCh := make(chan FetchStatus, maxFetchers*4+4)
	cmdChs := make(map[int]chan FetchCmd)

	// runCtx is canceled on the way out, clean or fatal, so a fetcher
	// blocked mid-drain (in an HTTP round-trip or a retry sleep) unwinds
	// instead of holding g.Wait() open.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	spawn := func(id int) {
		ch := make(chan FetchCmd, 1)
		cmdChs[id] = ch
		f := NewFetcher(id, instrumentedClient(client), entriesURL, cfg.UserAgent, statusCh, cfg.Sink)
		g.Go(func() error {
			f.Run(gctx, ch)
			return nil
		})
	}

	outstanding := 0
	poolLen := 0
	for i := 0; i < poolSize; i++ {
		cmd, ok := nextBatch()
		if !ok {
			break
		}
		spawn(i)
		poolLen++
		cmdChs[i] <- cmd
		outstanding++
	}

	successCount := 0
	successThreshold := successStep

	var fatalErr error
loop:
	for outstanding > 0 {
		st := <-statusCh
		switch st.Kind {
		case FetchSuccess:
			successCount++
			if successCount > successThreshold && poolLen < maxFetchers {
				if cmd, ok := nextBatch(); ok {
					id := poolLen
					spawn(id)
					poolLen++
					cmdChs[id] <- cmd
					outstanding++
					successCount = 0
					successThreshold += successStep
				}
			}
		case FetchFailure:
			successCount = 0
		case FetchFatal:
			// A write/decode failure on the sink surfaces here too: a
			// fetcher that can no longer hand entries to a dead sink
			// reports FetchFatal with the sink's own termination error.
			fatalErr = st.Err
			break loop
		case FetchComplete:
			if cmd, ok := nextBatch(); ok {
				cmdChs[st.WorkerID] <- cmd
			} else {
				outstanding--
			}
		}
	}

	// Cancel before signaling Stop: a fetcher mid-drain only checks its
	// command channel between batches, so without cancellation it can
	// keep pushing status onto statusCh and never reach the Stop below.
	cancel()
	for _, ch := range cmdChs {
		select {
		case ch <- FetchCmd{Kind: CmdStop}:
		default:
		}
	}

	// Drain statusCh while g.Wait() runs: a fetcher that was blocked on
	// a status send when the buffer filled must still be able to
	// deliver it (or observe ctx.Done() and give up) rather than hang
	// forever and keep g.Wait() from returning.
	drained := make(chan struct{})
	go func() {
		for range statusCh {
		}
		close(drained)
	}()
	_ = g.Wait()
	close(statusCh)
	<-drained

	sinkErr := cfg.Sink.Stop()

	if fatalErr != nil {
		return stats, fatalErr
	}
	if sinkErr != nil {
		return stats, sinkErr
	}

	stats.FetchedCount = lastEntry - cfg.Offset + 1
	return stats, nil
}
