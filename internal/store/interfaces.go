package store

import "context"

// Sources manages crawl origins.
type Sources interface {
	AddSource(ctx context.Context, s *Source) error
	GetSource(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	TouchLastScraped(ctx context.Context, id string, at int64) error
}

// Documents manages documents and their version histories.
type Documents interface {
	// UpsertDocument creates a document if (source_id, source_url) has no
	// existing row with at least one version, else returns the existing one.
	UpsertDocument(ctx context.Context, d *Document) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	// ListDocuments batches version attachment: one query for the requested
	// documents, one query for all their versions (spec 4.B, 9).
	ListDocuments(ctx context.Context, ids []string) ([]Document, error)
	Browse(ctx context.Context, f BrowseFilter) ([]Document, error)
	SetStatus(ctx context.Context, id string, status DocumentStatus) error
	SetMetadata(ctx context.Context, id string, m DocMetadata) error
	RecategorizeFromVersion(ctx context.Context, id string, mimeType string) error
}

// Versions manages immutable document version rows.
type Versions interface {
	AddVersion(ctx context.Context, v *DocumentVersion) (int64, error)
	FindDedup(ctx context.Context, sha256, blake3 string, size int64) (string, bool, error)
	ListVersions(ctx context.Context, documentID string) ([]DocumentVersion, error)
	SetPageCount(ctx context.Context, versionID int64, count int) error
	AllFilePaths(ctx context.Context) (map[string]bool, error)
}

// Pages manages per-page extraction and OCR state.
type Pages interface {
	SavePage(ctx context.Context, p *DocumentPage) (int64, error)
	GetPages(ctx context.Context, documentID string, versionID int64) ([]DocumentPage, error)
	PagesNeedingOCR(ctx context.Context, documentID string, versionID int64) ([]DocumentPage, error)
	SetPageStatus(ctx context.Context, pageID int64, status OCRStatus, ocrText, finalText string) error
	AllPagesTerminal(ctx context.Context, documentID string, versionID int64) (bool, error)
	StoreOCRResult(ctx context.Context, r *PageOcrResult) error
	BestOCRResult(ctx context.Context, pageID int64) (*PageOcrResult, error)
}

// Entities manages the entities annotation stage's output rows.
type Entities interface {
	ReplaceEntities(ctx context.Context, documentID string, entities []DocumentEntity) error
	ListEntities(ctx context.Context, documentID string) ([]DocumentEntity, error)
}

// Geospatial exposes the backend-differentiated distance/region queries
// over DocumentEntity's latitude/longitude (spec 4.I). The embedded
// backend returns ErrUnsupportedOnBackend for both.
type Geospatial interface {
	EntitiesWithinRadius(ctx context.Context, lat, lon, radiusKM float64) ([]DocumentEntity, error)
	EntitiesInBoundingBox(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]DocumentEntity, error)
}

// Archives manages the archive-member rows the extract stage records for
// container document versions (zip, tar; spec.md §3's VirtualFile).
type Archives interface {
	SaveVirtualFile(ctx context.Context, vf *VirtualFile) (int64, error)
	ListVirtualFiles(ctx context.Context, containerVersionID int64) ([]VirtualFile, error)
}

// Frontier manages the URL work queue and claim protocol.
type Frontier interface {
	AddURL(ctx context.Context, u *CrawlURL) (bool, error)
	ClaimPending(ctx context.Context, sourceID string) (*CrawlURL, error)
	MarkFetched(ctx context.Context, id int64, etag, lastModified, contentHash, documentID string, at int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int, baseDelayMS int64) error
	ReleaseRetryable(ctx context.Context, sourceID string, now int64) (int, error)
	SweepStaleClaims(ctx context.Context, olderThan int64) (int, error)
	ReenqueueFetched(ctx context.Context, sourceID string) (int, error)
	// ImportBatch bulk-adds urls to sourceID's frontier via the backend's
	// batch-insert path, deduplicating on the same (source_id, url)
	// constraint AddURL relies on (spec.md §6's load-file import adapters
	// are out of scope; this is the core path such an adapter would call).
	ImportBatch(ctx context.Context, sourceID string, urls []string, discoveryMethod string, now int64) (int, error)
}

// Requests is the append-only HTTP round-trip log.
type Requests interface {
	LogRequest(ctx context.Context, r *CrawlRequest) error
}

// ConfigInvalidation tracks per-source configuration hashes.
type ConfigInvalidation interface {
	GetConfigHash(ctx context.Context, sourceID string) (string, bool, error)
	SetConfigHash(ctx context.Context, sourceID, hash string, snapshot string, at int64) error
}

// RateLimitStates persists the governor's per-domain counters.
type RateLimitStates interface {
	LoadRateLimitState(ctx context.Context, domain string) (*RateLimitState, error)
	SaveRateLimitState(ctx context.Context, s *RateLimitState) error
}

// Stats reports corpus-wide statistics.
type Stats interface {
	CategoryCounts(ctx context.Context) (map[string]int64, error)
	Totals(ctx context.Context) (CorpusStats, error)
}

// Store is the combined data-access surface the crawl, page, and annotation
// components depend on. DB implements all of these against a Backend.
type Store interface {
	Sources
	Documents
	Versions
	Pages
	Entities
	Geospatial
	Archives
	Frontier
	Requests
	ConfigInvalidation
	RateLimitStates
	Stats
}
