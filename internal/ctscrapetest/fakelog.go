// Package ctscrapetest provides an httptest-backed stand-in for a CT log,
// serving get-sth/get-entries the way a real RFC 6962 log does, so the
// fetch pipeline can be exercised without a network dependency.
package ctscrapetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
)

type sthResponse struct {
	TreeSize          uint64 `json:"tree_size"`
	Timestamp         uint64 `json:"timestamp"`
	SHA256RootHash    []byte `json:"sha256_root_hash"`
	TreeHeadSignature []byte `json:"tree_head_signature"`
}

type leafEntry struct {
	LeafInput []byte `json:"leaf_input"`
	ExtraData []byte `json:"extra_data"`
}

type getEntriesResponse struct {
	Entries []leafEntry `json:"entries"`
}

// FakeLog is a minimal CT log: a settable STH and a sparse map of
// entries, served over HTTP by the two endpoints the scraper calls.
type FakeLog struct {
	srv *httptest.Server

	mu        sync.Mutex
	sth       sthResponse
	entries   map[uint64]leafEntry
	chunkSize uint64 // 0 means unlimited
	failNext  int    // remaining get-entries calls to fail before serving normally
	failCode  int

	// GetEntriesCalls counts requests to /ct/v1/get-entries, for tests
	// asserting a log was paginated across multiple round-trips.
	GetEntriesCalls int
}

// New starts a FakeLog listening on an ephemeral local port. Call Close
// when done.
func New() *FakeLog {
	fl := &FakeLog{entries: make(map[uint64]leafEntry)}
	mux := http.NewServeMux()
	mux.HandleFunc("/ct/v1/get-sth", fl.handleSTH)
	mux.HandleFunc("/ct/v1/get-entries", fl.handleEntries)
	fl.srv = httptest.NewServer(mux)
	return fl
}

// URL is the log's base URL, suitable for passing straight to the Runner.
func (fl *FakeLog) URL() string {
	return fl.srv.URL + "/"
}

// Close shuts down the underlying test server.
func (fl *FakeLog) Close() {
	fl.srv.Close()
}

// SetSTH sets the tree head every subsequent get-sth call returns.
func (fl *FakeLog) SetSTH(treeSize, timestamp uint64, rootHash, signature []byte) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.sth = sthResponse{
		TreeSize:          treeSize,
		Timestamp:         timestamp,
		SHA256RootHash:    rootHash,
		TreeHeadSignature: signature,
	}
}

// AddEntry registers entry id's leaf_input/extra_data pair.
func (fl *FakeLog) AddEntry(id uint64, leafInput, extraData []byte) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.entries[id] = leafEntry{LeafInput: leafInput, ExtraData: extraData}
}

// SetChunkSize caps how many entries a single get-entries call returns,
// simulating a log that paginates a large request across several
// round-trips (scenario 4 in the test matrix: a 20-entry log served 5
// entries at a time).
func (fl *FakeLog) SetChunkSize(n uint64) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.chunkSize = n
}

func (fl *FakeLog) handleSTH(w http.ResponseWriter, r *http.Request) {
	fl.mu.Lock()
	sth := fl.sth
	fl.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sth)
}

// FailNextGetEntries makes the next n get-entries calls return statusCode
// with an empty body instead of serving entries, so retry/backoff behavior
// (429 throttling, 5xx server errors) can be exercised deterministically.
func (fl *FakeLog) FailNextGetEntries(statusCode int, n int) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.failNext = n
	fl.failCode = statusCode
}

func (fl *FakeLog) handleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := parseRange(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fl.mu.Lock()
	fl.GetEntriesCalls++
	if fl.failNext > 0 {
		fl.failNext--
		code := fl.failCode
		fl.mu.Unlock()
		w.WriteHeader(code)
		return
	}
	chunk := fl.chunkSize
	var out []leafEntry
	for id := start; id <= end; id++ {
		e, ok := fl.entries[id]
		if !ok {
			break
		}
		out = append(out, e)
		if chunk != 0 && uint64(len(out)) >= chunk {
			break
		}
	}
	fl.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(getEntriesResponse{Entries: out})
}

func parseRange(q url.Values) (start, end uint64, err error) {
	start, err = strconv.ParseUint(q.Get("start"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.ParseUint(q.Get("end"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
