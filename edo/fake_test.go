package edo

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type fakeBackend struct {
	config    ServerConfig
	configErr error

	feed    DocumentFeed
	feedErr error

	parse    ParseResult
	parseErr error

	lines    map[string][]LinePayload
	linesErr error

	autoMatch    AutoMatchResult
	autoMatchErr error

	setMatch    *LinePayload
	setMatchErr error

	products    []Product
	productsErr error

	created    Product
	createdErr error

	receiptId  string
	receiptErr error

	signErr    error
	sendErr    error
	rejectErr  error
	syncNotice string
	syncErr    error

	signCalls     int
	sendCalls     int
	rejectCalls   int
	receiptCalls  int
	lastReceipt   ReceiptRequest
	lastSetMatch  *MatchInput
	lastRejection string
}

// offlineBackend answers every call as an absent endpoint.
func offlineBackend() *fakeBackend {
	nc := ErrBackendNotConfigured
	return &fakeBackend{
		configErr: nc, feedErr: nc, parseErr: nc, linesErr: nc, autoMatchErr: nc, setMatchErr: nc,
		productsErr: nc, createdErr: nc, receiptErr: nc, signErr: nc, sendErr: nc, rejectErr: nc, syncErr: nc,
	}
}

func (f *fakeBackend) Config(ctx context.Context) (ServerConfig, error) { return f.config, f.configErr }

func (f *fakeBackend) ListDocuments(ctx context.Context) (DocumentFeed, error) {
	return f.feed, f.feedErr
}

func (f *fakeBackend) ParseDocument(ctx context.Context, docflowID string) (ParseResult, error) {
	return f.parse, f.parseErr
}

func (f *fakeBackend) ListLines(ctx context.Context, docflowID string, withCandidates bool) ([]LinePayload, error) {
	if f.linesErr != nil {
		return nil, f.linesErr
	}
	return f.lines[docflowID], nil
}

func (f *fakeBackend) AutoMatch(ctx context.Context, docflowID string, threshold float64) (AutoMatchResult, error) {
	return f.autoMatch, f.autoMatchErr
}

func (f *fakeBackend) SetMatch(ctx context.Context, docflowID string, index int, in *MatchInput) (*LinePayload, error) {
	f.lastSetMatch = in
	return f.setMatch, f.setMatchErr
}

func (f *fakeBackend) ListProducts(ctx context.Context) ([]Product, error) {
	return f.products, f.productsErr
}

func (f *fakeBackend) CreateProduct(ctx context.Context, draft ProductDraft) (Product, error) {
	return f.created, f.createdErr
}

func (f *fakeBackend) CreateReceipt(ctx context.Context, req ReceiptRequest) (string, error) {
	f.receiptCalls++
	f.lastReceipt = req
	return f.receiptId, f.receiptErr
}

func (f *fakeBackend) Sign(ctx context.Context, docflowID string) error {
	f.signCalls++
	return f.signErr
}

func (f *fakeBackend) Send(ctx context.Context, docflowID string) error {
	f.sendCalls++
	return f.sendErr
}

func (f *fakeBackend) Reject(ctx context.Context, docflowID, reason string) error {
	f.rejectCalls++
	f.lastRejection = reason
	return f.rejectErr
}

func (f *fakeBackend) SyncStatus(ctx context.Context, docflowID string) (string, error) {
	return f.syncNotice, f.syncErr
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(ctx context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

type recordingJournal struct {
	entries []JournalEntry
}

func (r *recordingJournal) Record(ctx context.Context, entry JournalEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testClock = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(b Backend, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testClock }
	}
	if opts.SessionId == "" {
		opts.SessionId = "test-session"
	}
	return NewSession(b, opts)
}

// twoLineBackend lists one document with two unmatched lines.
func twoLineBackend() *fakeBackend {
	b := offlineBackend()
	b.feedErr = nil
	b.feed = DocumentFeed{Docs: []Document{{
		DocflowId:    "doc-1",
		Status:       StatusIncoming,
		Counterparty: "ООО «Ромашка Снаб»",
		Number:       "УПД №7",
		Total:        decimal.NewFromInt(8800),
	}}}
	b.linesErr = nil
	b.lines = map[string][]LinePayload{
		"doc-1": {
			{Line: Line{
				Index: 0, Name: "Сыр Моцарелла 45%", Quantity: decimal.NewFromInt(10), UnitName: "кг",
				Price: decimal.NewFromInt(820), VatRate: "20%", Barcode: "4601234000017", Article: "MOZ45",
				Raw: map[string]any{"batch": "B-17", "expiry": "2025-04-01"},
			}},
			{Line: Line{
				Index: 1, Name: "Коробка 33", Quantity: decimal.NewFromInt(50), UnitName: "шт",
				Price: decimal.NewFromInt(12), VatRate: "20%",
			}},
		},
	}
	return b
}

func kinds(notices []Notice) []NoticeKind {
	out := make([]NoticeKind, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Kind)
	}
	return out
}
