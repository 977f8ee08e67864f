package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is a user query as accepted by the API.
type Request struct {
	Question string `json:"question" validate:"required"`
	Season   string `json:"season,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// Filters narrows retrieval to a subset of the document store.
type Filters struct {
	Season string `json:"season,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// Passage is one retrieved context chunk, ranked by relevance.
type Passage struct {
	Content string     `json:"content"`
	Page    int        `json:"page,omitempty"`
	Score   float64    `json:"score"`
	Type    string     `json:"type,omitempty"`
	Source  string     `json:"source,omitempty"`
	Images  []ImageRef `json:"images,omitempty"`
}

// ImageRef points at an image asset associated with a passage.
type ImageRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Page     int    `json:"page,omitempty"`
}

// Source is the per-passage provenance reported alongside an answer.
type Source struct {
	Page  int     `json:"page,omitempty"`
	Score float64 `json:"score"`
	Type  string  `json:"type,omitempty"`
}

// Answer is a fully materialized response to a query.
type Answer struct {
	ID        uuid.UUID  `json:"id"`
	Question  string     `json:"question"`
	Text      string     `json:"answer"`
	Sources   []Source   `json:"sources,omitempty"`
	Images    []ImageRef `json:"images,omitempty"`
	Model     string     `json:"model,omitempty"`
	Duration  float64    `json:"duration_seconds"`
	Cached    bool       `json:"cached"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChunkType discriminates frames on a response stream.
type ChunkType string

const (
	ChunkToken   ChunkType = "token"
	ChunkSources ChunkType = "sources"
	ChunkDone    ChunkType = "done"
	ChunkError   ChunkType = "error"
)

// StreamChunk is one frame of an incremental response. A stream is a
// finite, non-restartable sequence terminated by exactly one ChunkDone
// or ChunkError frame, after which the channel is closed.
type StreamChunk struct {
	Type    ChunkType  `json:"type"`
	Content string     `json:"content,omitempty"`
	Sources []Source   `json:"sources,omitempty"`
	Images  []ImageRef `json:"images,omitempty"`
	Answer  *Answer    `json:"answer,omitempty"`
	Err     error      `json:"-"`
}

// Normalize canonicalizes query text for fingerprinting: casefolded,
// whitespace collapsed, trimmed. Normalization is part of the key, not
// of the hash function.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the deterministic cache / in-flight key for a
// normalized question plus its context-affecting parameters. Identical
// normalized input always produces the same fingerprint; filter order
// cannot influence it.
func Fingerprint(text string, f Filters) string {
	params := make([]string, 0, 2)
	if f.Season != "" {
		params = append(params, "season="+strings.ToLower(f.Season))
	}
	if f.TopK > 0 {
		params = append(params, fmt.Sprintf("k=%d", f.TopK))
	}
	sort.Strings(params)
	sum := sha256.Sum256([]byte(Normalize(text) + "|" + strings.Join(params, "&")))
	return hex.EncodeToString(sum[:])
}
