package edo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

const (
	moduleName = "edo"

	// activityLimit bounds the session-wide activity log.
	activityLimit = 200

	DefaultWarehouseId = "default-warehouse"
)

// Options wires optional collaborators into a Session. Zero values disable the collaborator.
type Options struct {
	SessionId   string
	Journal     Journal
	Events      EventSink
	Locker      Locker
	Cache       CatalogCache
	Archive     Archive
	Logger      *logrus.Logger
	Now         func() time.Time
	Threshold   int
	WarehouseId string
	// DisableDemoFallback turns a not-configured signing backend into a hard error.
	DisableDemoFallback bool
}

type docState struct {
	document      Document
	status        Status
	lines         []Line
	parsedXML     string
	xmlObject     string
	matches       map[int]*Match
	candidates    map[int][]Candidate
	receiptId     string
	receiptStatus string
	placeholder   bool
	history       []LogEntry
}

func (ds *docState) line(index int) (Line, bool) {
	for _, l := range ds.lines {
		if l.Index == index {
			return l, true
		}
	}
	return Line{}, false
}

func (ds *docState) replaceLines(lines []Line) {
	ds.lines = lines
	ds.matches = make(map[int]*Match)
	ds.candidates = make(map[int][]Candidate)
}

// Session is the console state of one operator working the EDO page. It is not safe for
// concurrent use; Controller serializes access.
type Session struct {
	id      string
	backend Backend
	opts    Options
	logger  *logrus.Logger
	now     func() time.Time

	serverConfig ServerConfig
	documents    []Document
	selected     string
	store        map[string]*docState
	catalog      []Product
	activity     []LogEntry
	banner       string
	notices      []Notice
}

func NewSession(backend Backend, opts Options) *Session {
	s := &Session{
		id:      opts.SessionId,
		backend: backend,
		opts:    opts,
		logger:  opts.Logger,
		now:     opts.Now,
		store:   make(map[string]*docState),
		catalog: SeedCatalog(),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = config.GetLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.opts.Threshold <= 0 {
		s.opts.Threshold = AutoMatchThreshold
	}
	if s.opts.WarehouseId == "" {
		s.opts.WarehouseId = DefaultWarehouseId
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Init loads everything the page shows on first open.
func (s *Session) Init(ctx context.Context) {
	s.FetchServerConfig(ctx)
	s.LoadCatalog(ctx)
	s.SyncDocuments(ctx)
}

func (s *Session) FetchServerConfig(ctx context.Context) {
	cfg, err := s.backend.Config(ctx)
	if err != nil {
		s.warn("FetchServerConfig", "", err)
		s.serverConfig = ServerConfig{EdoConfigured: false}
		return
	}
	s.serverConfig = cfg
}

// LoadCatalog replaces the session catalog with the backend's. The seed catalog stays when the
// backend has none.
func (s *Session) LoadCatalog(ctx context.Context) {
	if s.opts.Cache != nil {
		if products, ok := s.opts.Cache.Get(ctx); ok && len(products) > 0 {
			s.catalog = products
			return
		}
	}
	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		s.warn("LoadCatalog", "", err)
		return
	}
	if products == nil {
		return
	}
	s.catalog = products
	if s.opts.Cache != nil {
		s.opts.Cache.Put(ctx, products)
	}
}

// SyncDocuments reloads the document list. Any failure falls back to the sample feed with a banner.
func (s *Session) SyncDocuments(ctx context.Context) {
	s.loadDocuments(ctx)
}

// loadDocuments reports whether the list came from the backend rather than the sample feed.
func (s *Session) loadDocuments(ctx context.Context) bool {
	s.banner = ""
	live := false
	feed, err := s.backend.ListDocuments(ctx)
	switch {
	case err != nil:
		s.warn("SyncDocuments", "", err)
		s.documents = SampleDocuments()
		s.setBanner("Could not load documents from the EDO provider. Showing sample data.")
	case feed.Docs == nil:
		s.documents = SampleDocuments()
		s.setBanner("The EDO provider returned no documents. Showing sample data; check the provider connection.")
	default:
		live = true
		s.documents = feed.Docs
		if feed.Cached && feed.Warning != "" {
			s.setBanner(feed.Warning)
		}
	}
	for _, doc := range s.documents {
		if ds, ok := s.store[doc.DocflowId]; ok {
			ds.document = doc
		}
	}
	if s.selected == "" && len(s.documents) > 0 {
		if err := s.SelectDocument(ctx, s.documents[0].DocflowId); err != nil {
			s.warn("SyncDocuments", s.documents[0].DocflowId, err)
		}
	}
	return live
}

// SelectDocument focuses a document and loads its stored lines the first time it is opened.
func (s *Session) SelectDocument(ctx context.Context, docflowID string) error {
	doc, ok := s.findDocument(docflowID)
	if !ok {
		return ErrDocumentNotFound
	}
	ds := s.ensureDoc(doc)
	changed := s.selected != docflowID
	s.selected = docflowID
	if changed && len(ds.lines) == 0 {
		s.RefreshLines(ctx, docflowID)
	}
	return nil
}

// RefreshLines pulls stored lines and candidates. Failures only reach the log.
func (s *Session) RefreshLines(ctx context.Context, docflowID string) {
	ds, ok := s.store[docflowID]
	if !ok {
		return
	}
	payloads, err := s.backend.ListLines(ctx, docflowID, true)
	if err != nil {
		s.warn("RefreshLines", docflowID, err)
		return
	}
	if payloads == nil {
		return
	}
	s.applyPayloads(ds, payloads)
	if len(payloads) > 0 {
		ds.placeholder = false
	}
}

// Parse requests the seller title and its line items. Without a usable answer the placeholder
// line set is installed and flagged.
func (s *Session) Parse(ctx context.Context, docflowID string) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	result, err := s.backend.ParseDocument(ctx, docflowID)
	switch {
	case err != nil:
		s.warn("Parse", docflowID, err)
		s.installPlaceholder(ctx, ds)
		s.setBanner("Could not parse the document. Showing a placeholder line set.")
		s.appendHistory(ctx, ds, "Parse failed: "+err.Error())
		s.log(ctx, docflowID, "Parse failed: "+err.Error())
	case result.Items == nil:
		s.installPlaceholder(ctx, ds)
		s.setBanner("The document has no parsed lines. Showing a placeholder line set.")
		s.appendHistory(ctx, ds, "Placeholder lines installed")
		s.log(ctx, docflowID, "Placeholder line set used")
	default:
		ds.parsedXML = result.XML
		ds.placeholder = false
		s.appendHistory(ctx, ds, "Seller title received and parsed")
		s.log(ctx, docflowID, "Seller title loaded and parsed")
		s.RefreshLines(ctx, docflowID)
		if len(ds.lines) == 0 {
			ds.replaceLines(result.Items)
		}
		s.archiveXML(ctx, ds)
	}
	if len(ds.lines) > 0 && ds.status == StatusIncoming {
		ds.status = StatusLinesPending
	}
	return nil
}

func (s *Session) installPlaceholder(ctx context.Context, ds *docState) {
	ds.replaceLines(PlaceholderLines())
	ds.parsedXML = ""
	ds.placeholder = true
	s.AutoMatchLocal(ctx, ds.document.DocflowId)
}

func (s *Session) archiveXML(ctx context.Context, ds *docState) {
	if s.opts.Archive == nil || ds.parsedXML == "" {
		return
	}
	object := "edo/" + ds.document.DocflowId + "/title.xml"
	if err := s.opts.Archive.Put(ctx, object, "application/xml", []byte(ds.parsedXML)); err != nil {
		config.LogWarn(s.logger, moduleName, "archiveXML", ds.document.DocflowId, nil, err)
		return
	}
	ds.xmlObject = object
}

func (s *Session) applyPayloads(ds *docState, payloads []LinePayload) {
	lines := make([]Line, 0, len(payloads))
	for _, p := range payloads {
		lines = append(lines, p.Line)
	}
	ds.replaceLines(lines)
	for _, p := range payloads {
		s.applyPayload(ds, p)
	}
}

func (s *Session) applyPayload(ds *docState, p LinePayload) {
	idx := p.Line.Index
	for i := range ds.lines {
		if ds.lines[i].Index == idx {
			ds.lines[i] = p.Line
		}
	}
	if p.Match != nil {
		m := *p.Match
		ds.matches[idx] = &m
	} else {
		delete(ds.matches, idx)
	}
	if len(p.Candidates) > 0 {
		ds.candidates[idx] = p.Candidates
	} else {
		delete(ds.candidates, idx)
	}
}

func (s *Session) findDocument(docflowID string) (Document, bool) {
	for _, d := range s.documents {
		if d.DocflowId == docflowID {
			return d, true
		}
	}
	return Document{}, false
}

func (s *Session) ensureDoc(doc Document) *docState {
	if ds, ok := s.store[doc.DocflowId]; ok {
		return ds
	}
	status := doc.Status
	if status == "" {
		status = StatusIncoming
	}
	ds := &docState{
		document:   doc,
		status:     status,
		matches:    make(map[int]*Match),
		candidates: make(map[int][]Candidate),
	}
	s.store[doc.DocflowId] = ds
	return ds
}

func (s *Session) doc(docflowID string) (*docState, error) {
	if ds, ok := s.store[docflowID]; ok {
		return ds, nil
	}
	doc, ok := s.findDocument(docflowID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return s.ensureDoc(doc), nil
}

func (s *Session) appendHistory(ctx context.Context, ds *docState, message string) {
	entry := LogEntry{ID: uuid.NewString(), DocflowId: ds.document.DocflowId, Message: message, Timestamp: s.now()}
	ds.history = append([]LogEntry{entry}, ds.history...)
	s.journal(ctx, JournalHistory, entry)
}

func (s *Session) log(ctx context.Context, docflowID, message string) {
	entry := LogEntry{ID: uuid.NewString(), DocflowId: docflowID, Message: message, Timestamp: s.now()}
	s.activity = append([]LogEntry{entry}, s.activity...)
	if len(s.activity) > activityLimit {
		s.activity = s.activity[:activityLimit]
	}
	s.journal(ctx, JournalActivity, entry)
}

func (s *Session) journal(ctx context.Context, kind JournalKind, entry LogEntry) {
	if s.opts.Journal == nil {
		return
	}
	err := s.opts.Journal.Record(ctx, JournalEntry{LogEntry: entry, Kind: kind, SessionId: s.id, Actor: utils.ActorFromContext(ctx)})
	if err != nil {
		config.LogWarn(s.logger, moduleName, "journal", entry.DocflowId, entry.Message, err)
	}
}

func (s *Session) emit(ctx context.Context, ev Event) {
	if s.opts.Events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Actor = utils.ActorFromContext(ctx)
	ev.OccurredAt = s.now()
	if err := s.opts.Events.Emit(ctx, ev); err != nil {
		config.LogError(s.logger, moduleName, "emit", ev.DocflowId, ev, err)
	}
}

func (s *Session) notify(kind NoticeKind, docflowID, message string) {
	s.notices = append(s.notices, Notice{Kind: kind, DocflowId: docflowID, Message: message})
}

func (s *Session) setBanner(message string) {
	s.banner = message
	s.notify(NoticeBanner, "", message)
}

func (s *Session) drainNotices() []Notice {
	out := s.notices
	s.notices = nil
	return out
}

// warn logs a recoverable backend failure. Not-configured endpoints are expected and stay quiet.
func (s *Session) warn(funcName, docflowID string, err error) {
	if err == nil || errors.Is(err, ErrBackendNotConfigured) {
		return
	}
	config.LogWarn(s.logger, moduleName, funcName, docflowID, nil, err)
}

// Accessors.

func (s *Session) Documents() []Document { return append([]Document(nil), s.documents...) }

func (s *Session) Selected() string { return s.selected }

func (s *Session) Catalog() []Product { return append([]Product(nil), s.catalog...) }

func (s *Session) Activity() []LogEntry { return append([]LogEntry(nil), s.activity...) }

func (s *Session) Banner() string { return s.banner }

func (s *Session) ServerConfig() ServerConfig { return s.serverConfig }

func (s *Session) Lines(docflowID string) []Line {
	if ds, ok := s.store[docflowID]; ok {
		return append([]Line(nil), ds.lines...)
	}
	return nil
}

func (s *Session) History(docflowID string) []LogEntry {
	if ds, ok := s.store[docflowID]; ok {
		return append([]LogEntry(nil), ds.history...)
	}
	return nil
}

// MatchFor returns a copy of the line's match, or nil.
func (s *Session) MatchFor(docflowID string, index int) *Match {
	ds, ok := s.store[docflowID]
	if !ok {
		return nil
	}
	m, ok := ds.matches[index]
	if !ok || m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// CandidatesFor returns the backend's candidates for the line, or scores the current session
// catalog when the backend supplied none. Locally scored candidates are never stored.
func (s *Session) CandidatesFor(docflowID string, index int) []Candidate {
	ds, ok := s.store[docflowID]
	if !ok {
		return nil
	}
	if c := ds.candidates[index]; len(c) > 0 {
		return append([]Candidate(nil), c...)
	}
	line, ok := ds.line(index)
	if !ok {
		return nil
	}
	return BuildCandidates(line, s.catalog)
}

func (s *Session) ReceiptId(docflowID string) string {
	if ds, ok := s.store[docflowID]; ok {
		return ds.receiptId
	}
	return ""
}

func (s *Session) IsPlaceholder(docflowID string) bool {
	ds, ok := s.store[docflowID]
	return ok && ds.placeholder
}

// ParsedXML returns the seller title stored by Parse.
func (s *Session) ParsedXML(docflowID string) (string, error) {
	ds, ok := s.store[docflowID]
	if !ok || ds.parsedXML == "" {
		return "", ErrXMLNotLoaded
	}
	return ds.parsedXML, nil
}
