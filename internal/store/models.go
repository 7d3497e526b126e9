package store

// Source is a named crawl origin. A source is created by operator action
// and never destroyed while any document references it.
type Source struct {
	ID          string
	SourceType  string
	BaseURL     string
	Metadata    string // opaque JSON
	CreatedAt   int64
	LastScraped *int64
}

// DocumentStatus is the monotonic lifecycle a document's status advances
// through, except for deliberate resets (operator action, annotation-version
// bump).
type DocumentStatus string

const (
	StatusPending     DocumentStatus = "pending"
	StatusDownloaded  DocumentStatus = "downloaded"
	StatusOCRComplete DocumentStatus = "ocr_complete"
	StatusIndexed     DocumentStatus = "indexed"
)

// Document is the logical artifact at a canonical URL within a source.
type Document struct {
	ID              string
	SourceID        string
	Title           string
	SourceURL       string
	Status          DocumentStatus
	Metadata        DocMetadata
	CategoryID      string
	DiscoveryMethod string
	CreatedAt       int64
	UpdatedAt       int64

	// Versions is populated by the batched loader ListDocuments, which
	// Browse and GetDocument both go through.
	Versions []DocumentVersion
}

// CurrentVersion returns the highest-id version, or nil if the document has
// no versions yet (incomplete, per spec 3 - excluded from by-URL existence
// checks).
func (d *Document) CurrentVersion() *DocumentVersion {
	if len(d.Versions) == 0 {
		return nil
	}
	cur := &d.Versions[0]
	for i := range d.Versions {
		if d.Versions[i].ID > cur.ID {
			cur = &d.Versions[i]
		}
	}
	return cur
}

// AnnotationResult is one entry of DocMetadata.Annotations: the typed
// surface spec.md 9 calls for instead of reading the annotations sub-object
// as opaque JSON everywhere it matters.
type AnnotationResult struct {
	Version   int    `json:"version"`
	Data      string `json:"data,omitempty"` // opaque JSON payload (synopsis+tags, entity summary, etc.)
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// DocMetadata is the document's metadata column, modeled as a typed map of
// annotation_type -> result plus the handful of top-level fields the core
// reads directly. Everything else a caller wants to stash rides in Extra,
// which round-trips through JSON unexamined.
type DocMetadata struct {
	Annotations    map[string]AnnotationResult `json:"annotations,omitempty"`
	EstimatedDate  *int64                      `json:"estimated_date,omitempty"`
	DateConfidence float64                     `json:"date_confidence,omitempty"`
	DateSource     string                      `json:"date_source,omitempty"`
	ManualDate     *int64                      `json:"manual_date,omitempty"`
	Synopsis       string                      `json:"synopsis,omitempty"`
	Tags           []string                    `json:"tags,omitempty"`
	ExtractedText  string                      `json:"extracted_text,omitempty"`
	Extra          map[string]any              `json:"extra,omitempty"`
}

// NeedsAnnotation implements the sole gating rule the annotation runner
// consults (spec 4.B): no entry for stage, or its recorded version is older
// than the requested version.
func (m DocMetadata) NeedsAnnotation(stage string, version int) bool {
	a, ok := m.Annotations[stage]
	if !ok {
		return true
	}
	return a.Version < version
}

// DocumentVersion is an immutable snapshot of bytes. Versions are never
// mutated after insert except to backfill PageCount once the pager runs.
type DocumentVersion struct {
	ID                int64
	DocumentID        string
	ContentHash       string // sha256 hex
	ContentHashBLAKE3 string // blake3 hex
	FilePath          string
	FileSize          int64
	MimeType          string
	AcquiredAt        *int64
	SourceURL         string
	OriginalFilename  string
	ServerDate        *int64
	PageCount         *int
	DedupIndex        int
}

// OCRStatus is the per-page lifecycle; it advances monotonically.
type OCRStatus string

const (
	OCRPending       OCRStatus = "pending"
	OCRTextExtracted OCRStatus = "text_extracted"
	OCRComplete      OCRStatus = "ocr_complete"
	OCRFailed        OCRStatus = "failed"
	OCRSkipped       OCRStatus = "skipped"
)

// Terminal reports whether this status ends the page's OCR lifecycle (used
// by the finalize predicate: "all pages terminal and count > 0").
func (s OCRStatus) Terminal() bool {
	switch s {
	case OCRTextExtracted, OCRComplete, OCRFailed, OCRSkipped:
		return true
	default:
		return false
	}
}

// DocumentPage is one page of one version, unique by (document, version, page_number).
type DocumentPage struct {
	ID         int64
	DocumentID string
	VersionID  int64
	PageNumber int
	PDFText    string
	OCRText    string
	FinalText  string
	OCRStatus  OCRStatus
}

// PageOcrResult is one OCR attempt by one backend on one page.
type PageOcrResult struct {
	ID         int64
	PageID     int64
	Backend    string
	Text       string
	Confidence float64
	DurationMS int64
	Error      string
	CreatedAt  int64
}

// VirtualFile is a file inside a container document (zip, tar, email attachment).
type VirtualFile struct {
	ID                  int64
	ContainerVersionID  int64
	ArchivePath         string
	IsDirectory         bool
	MimeType            string
	CompressedSize      int64
	FileSize            int64
	ContentHash         string
	ExtractedDocumentID string
}

// DocumentEntity is one entity/date/location extracted by the "entities"
// annotation stage. Rows are cleared and reinserted per document on each
// run (spec 4.G idempotence).
type DocumentEntity struct {
	ID         int64
	DocumentID string
	EntityType string // person, organization, location, date, other
	Text       string
	Normalized string
	Latitude   *float64
	Longitude  *float64
	Source     string
}

// CrawlURLStatus is the frontier entry's lifecycle.
type CrawlURLStatus string

const (
	URLDiscovered CrawlURLStatus = "discovered"
	URLFetching   CrawlURLStatus = "fetching"
	URLFetched    CrawlURLStatus = "fetched"
	URLFailed     CrawlURLStatus = "failed"
	URLExhausted  CrawlURLStatus = "exhausted"
)

// CrawlURL is a frontier entry keyed (source_id, url).
type CrawlURL struct {
	ID               int64
	SourceID         string
	URL              string
	Status           CrawlURLStatus
	DiscoveryMethod  string
	ParentURL        string
	DiscoveryContext string // JSON
	Depth            int
	DiscoveredAt     int64
	FetchedAt        *int64
	RetryCount       int
	LastError        string
	NextRetryAt      *int64
	ETag             string
	LastModified     string
	ContentHash      string
	DocumentID       string
}

// CrawlRequest is an append-only log row of one HTTP round-trip.
type CrawlRequest struct {
	ID               int64
	CrawlURLID       int64
	StartedAt        int64
	DurationMS       int64
	StatusCode       int
	RequestHeaders   string
	ResponseHeaders  string
	ResponseSize     int64
	Error            string
	WasConditional   bool
	WasNotModified   bool
}

// CrawlConfig holds the hash of the active crawl configuration for a source.
type CrawlConfig struct {
	SourceID   string
	ConfigHash string
	UpdatedAt  int64
}

// ConfigurationHistory is an append-only snapshot of a source's effective
// crawl configuration, pruned to a bounded ring (see HistoryRingSize).
type ConfigurationHistory struct {
	ID         int64
	SourceID   string
	ConfigHash string
	Snapshot   string // JSON
	CreatedAt  int64
}

// HistoryRingSize bounds how many ConfigurationHistory rows are retained
// per source.
const HistoryRingSize = 16

// RateLimitState is the governor's per-domain persisted counters.
type RateLimitState struct {
	Domain                string
	CurrentDelayMS         int64
	LastRequestAt          *int64
	ConsecutiveSuccesses   int
	InBackoff              bool
	TotalRequests          int64
	TotalThrottled         int64
}
