package edo

import (
	"context"
	"time"
)

// Backend is the EDO document service the console drives. Implementations return
// ErrBackendNotConfigured when an endpoint is absent and *BackendError for reported failures.
type Backend interface {
	Config(ctx context.Context) (ServerConfig, error)
	ListDocuments(ctx context.Context) (DocumentFeed, error)
	ParseDocument(ctx context.Context, docflowID string) (ParseResult, error)
	// ListLines returns nil when the backend has no stored lines for the document.
	ListLines(ctx context.Context, docflowID string, withCandidates bool) ([]LinePayload, error)
	AutoMatch(ctx context.Context, docflowID string, threshold float64) (AutoMatchResult, error)
	// SetMatch with a nil input clears the line's match.
	SetMatch(ctx context.Context, docflowID string, index int, in *MatchInput) (*LinePayload, error)
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, draft ProductDraft) (Product, error)
	CreateReceipt(ctx context.Context, req ReceiptRequest) (string, error)
	Sign(ctx context.Context, docflowID string) error
	Send(ctx context.Context, docflowID string) error
	Reject(ctx context.Context, docflowID, reason string) error
	// SyncStatus returns the backend's warning text, if any.
	SyncStatus(ctx context.Context, docflowID string) (string, error)
}

// Journal persists history and activity entries outside the session.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

type JournalKind string

const (
	JournalHistory  JournalKind = "history"
	JournalActivity JournalKind = "activity"
)

type JournalEntry struct {
	LogEntry
	Kind      JournalKind
	SessionId string
	Actor     string
}

type EventType string

const (
	EventReceiptCreated EventType = "receipt-created"
	EventSigned         EventType = "signed"
	EventSent           EventType = "sent"
	EventRejected       EventType = "rejected"
)

// Event is a lifecycle transition published to downstream consumers.
type Event struct {
	ID         string
	DocflowId  string
	Type       EventType
	Status     Status
	Demo       bool
	ReceiptId  string
	Reason     string
	Actor      string
	OccurredAt time.Time
}

type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// Locker takes an exclusive lock. A nil release with a nil error means the lock was not taken
// and the caller proceeds without it.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// CatalogCache stores the product catalog between sessions.
type CatalogCache interface {
	Get(ctx context.Context) ([]Product, bool)
	Put(ctx context.Context, products []Product)
	Invalidate(ctx context.Context)
}

// Archive stores generated artifacts and hands out download links.
type Archive interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) error
	URL(ctx context.Context, objectName string) (string, error)
}
