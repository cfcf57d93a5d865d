// Package model holds the plain data types shared across the ingestion,
// indexing, and metadata-extraction pipeline. Types here carry no
// persistence-layer imports so they can be used by the store, the worker
// pools, and the HTTP layer alike.
package model

import "time"

// DocumentStatus is a state in the SourceDocument lifecycle state machine.
type DocumentStatus string

const (
	StatusPending         DocumentStatus = "PENDING"
	StatusProcessing      DocumentStatus = "PROCESSING"
	StatusDocumentStored  DocumentStatus = "DOCUMENT_STORED"
	StatusIndexing        DocumentStatus = "INDEXING"
	StatusReady           DocumentStatus = "READY"
	StatusFailed          DocumentStatus = "FAILED"
)

// allowedTransitions encodes the state machine graph from spec §4.6. It is
// consulted by store.UpdateDocumentStatus; the store's claim queries instead
// encode their single allowed edge in their WHERE clause.
var allowedTransitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:        {StatusProcessing},
	StatusProcessing:     {StatusDocumentStored, StatusFailed},
	StatusDocumentStored: {StatusIndexing},
	StatusIndexing:       {StatusReady, StatusFailed},
	StatusFailed:         {StatusPending},
	StatusReady:          {StatusIndexing},
}

// AllowedTransition reports whether a document may move from one status to
// another. Used by the store layer, not by callers directly.
func AllowedTransition(from, to DocumentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourceDocument is one ingested file.
type SourceDocument struct {
	ID                string
	DisplayName       string
	SourceURI         string
	EntityLabel       string
	Status            DocumentStatus
	StatusDetail      string
	MetadataExtracted bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DocumentChunk is one summarized unit of a document.
type DocumentChunk struct {
	ID             string
	DocumentID     string
	ChunkIndex     int
	Title          string
	Summary        string
	OriginalText   string
	HasTable       bool
	ChunkMetadata  map[string]string
}

// IndexingCounters tracks aggregate indexing progress for a Collection.
type IndexingCounters struct {
	TotalDocuments   int
	IndexedDocuments int
	FailedDocuments  int
}

// Collection is a user-curated set of SourceDocuments.
type Collection struct {
	ID              string
	Name            string
	Description     string
	VectorIndexName string
	IndexingStats   IndexingCounters
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MembershipIndexingStatus is the per-collection indexing state of a document.
type MembershipIndexingStatus string

const (
	MembershipPending  MembershipIndexingStatus = "pending"
	MembershipIndexing MembershipIndexingStatus = "indexing"
	MembershipIndexed  MembershipIndexingStatus = "indexed"
	MembershipFailed   MembershipIndexingStatus = "failed"
)

// CollectionMembership associates one SourceDocument with one Collection.
type CollectionMembership struct {
	CollectionID     string
	DocumentID       string
	IndexingStatus   MembershipIndexingStatus
	IndexingProgress int
	IndexedAt        *time.Time
	ErrorMessage     string
	VectorPointID    string
}

// DataType is the declared type of an extracted metadata value.
type DataType string

const (
	DataTypeText    DataType = "text"
	DataTypeNumber  DataType = "number"
	DataTypeDate    DataType = "date"
	DataTypeBoolean DataType = "boolean"
)

// ValidationRules optionally constrains an extracted value.
type ValidationRules struct {
	Regex   string `json:"regex,omitempty"`
	Default string `json:"default,omitempty"`
}

// MetadataConfiguration is a reusable named extractor.
type MetadataConfiguration struct {
	ID                      string
	Name                    string
	Description             string
	DataType                DataType
	ExtractionPrompt        string
	ExtractionPromptVersion int
	ValidationRules         *ValidationRules
	IsActive                bool
	CreatedBy               string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// MetadataGroup is a named bundle of MetadataConfigurations.
type MetadataGroup struct {
	ID          string
	Name        string
	Description string
	Color       string
	Tags        []string
	IsDefault   bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GroupConfigLink associates a configuration with a group at a display order.
type GroupConfigLink struct {
	GroupID      string
	ConfigID     string
	DisplayOrder int
	AddedAt      time.Time
	AddedBy      string
}

// ExtractionJobStatus is the lifecycle state of an ExtractionJob.
type ExtractionJobStatus string

const (
	ExtractionPending    ExtractionJobStatus = "pending"
	ExtractionProcessing ExtractionJobStatus = "processing"
	ExtractionCompleted  ExtractionJobStatus = "completed"
	ExtractionFailed     ExtractionJobStatus = "failed"
)

// ExtractionJob is one user-initiated extraction run.
type ExtractionJob struct {
	ID                 string
	CollectionID       string
	GroupID            string
	Status             ExtractionJobStatus
	TotalDocuments     int
	ProcessedDocuments int
	FailedDocuments    int
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CreatedBy          string
	ErrorDetails       string
}

// ExtractedMetadata is one extracted field value.
type ExtractedMetadata struct {
	CollectionID    string
	DocumentID      string
	GroupID         string
	MetadataName    string
	ExtractionJobID string
	ExtractedValue  string
	ExtractedBy     string
	ExtractedAt     time.Time
}

// Sentinel values recorded in ExtractedMetadata.ExtractedValue for non-fatal
// extraction outcomes (spec §4.9, §7).
const (
	SentinelNotFound           = "Not Found"
	SentinelServiceUnavailable = "Service Unavailable"
	SentinelInvalidFormat      = "Invalid Format"
)

// IndexingJobType distinguishes a fresh index from a re-index.
type IndexingJobType string

const (
	IndexingJobIndex   IndexingJobType = "index"
	IndexingJobReindex IndexingJobType = "reindex"
)

// IndexingJobStatus is the lifecycle state of an IndexingJob.
type IndexingJobStatus string

const (
	IndexingJobPending    IndexingJobStatus = "pending"
	IndexingJobProcessing IndexingJobStatus = "processing"
	IndexingJobCompleted  IndexingJobStatus = "completed"
	IndexingJobFailed     IndexingJobStatus = "failed"
)

// IndexingJob is one indexing run over a set of documents in a collection.
type IndexingJob struct {
	ID             string
	CollectionID   string
	Type           IndexingJobType
	Status         IndexingJobStatus
	DocumentIDs    []string
	TotalDocuments int
	CreatedAt      time.Time
	CompletedAt    *time.Time
	ErrorDetails   string
}
