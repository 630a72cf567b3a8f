package duplicates

import (
	"github.com/augurlabs/augur/pkg/models"
)

// RuleID is the identifier reported on duplicate-code violations.
const RuleID = "duplicate-code"

// Occurrence is a single location where a cluster's content appears.
type Occurrence struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`

	// Token-index addressing within the file's stream. Internal to the
	// merge phase; line ranges are the reporting contract.
	fileIdx  int
	startTok int
	endTok   int // exclusive
}

// Lines returns the number of source lines the occurrence spans.
func (o Occurrence) Lines() int {
	return o.EndLine - o.StartLine + 1
}

// Cluster is a maximal set of ≥2 verified-equal token slices. Built fresh
// each run.
type Cluster struct {
	TokenCount  int          `json:"token_count"`
	Lines       int          `json:"lines"`
	Occurrences []Occurrence `json:"occurrences"`
}

// Summary aggregates run statistics.
type Summary struct {
	TotalFiles       int     `json:"total_files"`
	SkippedFiles     int     `json:"skipped_files"`
	CacheHits        int     `json:"cache_hits"`
	CacheMisses      int     `json:"cache_misses"`
	TotalClusters    int     `json:"total_clusters"`
	TotalLines       int     `json:"total_lines"`
	DuplicatedLines  int     `json:"duplicated_lines"`
	DuplicationRatio float64 `json:"duplication_ratio"`
	P50ClusterLines  float64 `json:"p50_cluster_lines"`
	P95ClusterLines  float64 `json:"p95_cluster_lines"`
}

// Analysis is the full result of a duplicate scan.
type Analysis struct {
	Violations []models.Violation `json:"violations"`
	Clusters   []Cluster          `json:"clusters,omitempty"`
	Warnings   []models.Warning   `json:"warnings,omitempty"`
	Summary    Summary            `json:"summary"`

	// ContentHashes maps scanned path to content hash, for cache pruning.
	ContentHashes map[string]string `json:"-"`
}

// Config holds duplicate detection thresholds and matching options.
type Config struct {
	MinLines             int
	MinTokens            int
	NormalizeIdentifiers bool
	NormalizeLiterals    bool
	MaxFileSize          int64
	Workers              int
}

// DefaultConfig returns conservative defaults: exact-token matching, six
// duplicated lines minimum.
func DefaultConfig() Config {
	return Config{
		MinLines:  6,
		MinTokens: 40,
	}
}
