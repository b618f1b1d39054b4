package edo

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

type Intent string

const (
	IntentSyncDocs        Intent = "sync-docs"
	IntentRetryDocuments  Intent = "retry-documents"
	IntentSelectDocument  Intent = "select-document"
	IntentParseDocument   Intent = "parse-document"
	IntentRefreshDoc      Intent = "refresh-doc"
	IntentAutoMatch       Intent = "auto-match"
	IntentSetMatch        Intent = "set-match"
	IntentClearMatch      Intent = "clear-match"
	IntentCreateProduct   Intent = "create-product"
	IntentCreateReceipt   Intent = "create-receipt"
	IntentSignDoc         Intent = "sign-doc"
	IntentSendDoc         Intent = "send-doc"
	IntentRejectDoc       Intent = "reject-doc"
	IntentSyncStatus      Intent = "sync-status"
	IntentViewXML         Intent = "view-xml"
	IntentExportReceipt   Intent = "export-receipt"
)

const exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
	NoticeBanner  NoticeKind = "banner"
)

type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	DocflowId string     `json:"docflowId,omitempty"`
}

// Command is one user action on the EDO page. DocflowId defaults to the selected document.
type Command struct {
	Intent    Intent        `json:"intent" validate:"required"`
	DocflowId string        `json:"docflowId,omitempty"`
	LineIndex *int          `json:"lineIndex,omitempty" validate:"omitempty,min=0"`
	Match     *MatchInput   `json:"match,omitempty" validate:"-"`
	Product   *ProductDraft `json:"product,omitempty" validate:"-"`
	Reason    string        `json:"reason,omitempty"`
}

type LineView struct {
	Line       Line        `json:"line"`
	Match      *Match      `json:"match"`
	Candidates []Candidate `json:"candidates"`
	Total      string      `json:"total"`
}

type DocumentView struct {
	Document      Document     `json:"document"`
	Status        Status       `json:"status"`
	Lines         []LineView   `json:"lines"`
	Draft         ReceiptDraft `json:"draft"`
	Unmatched     int          `json:"unmatched"`
	ReceiptId     string       `json:"receiptId,omitempty"`
	ReceiptStatus string       `json:"receiptStatus,omitempty"`
	Placeholder   bool         `json:"placeholder"`
	HasXML        bool         `json:"hasXml"`
	History       []LogEntry   `json:"history"`
}

type DocumentSummary struct {
	Document Document `json:"document"`
	Status   Status   `json:"status"`
}

// View is the renderable state of a session.
type View struct {
	SessionId    string            `json:"sessionId"`
	ServerConfig ServerConfig      `json:"serverConfig"`
	Banner       string            `json:"banner,omitempty"`
	Documents    []DocumentSummary `json:"documents"`
	SelectedId   string            `json:"selectedId,omitempty"`
	Selected     *DocumentView     `json:"selected,omitempty"`
	CatalogSize  int               `json:"catalogSize"`
	Activity     []LogEntry        `json:"activity"`
}

// Attachment is a file produced by an intent: inline bytes or a download link.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url,omitempty"`
	Base64      string `json:"base64,omitempty"`
	Text        string `json:"text,omitempty"`
}

type Result struct {
	Intent     Intent      `json:"intent"`
	View       View        `json:"view"`
	Notices    []Notice    `json:"notices"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

type handler func(ctx context.Context, c *Controller, cmd Command) (*Attachment, error)

// Controller owns a Session and serializes every action on it.
type Controller struct {
	mu       sync.Mutex
	session  *Session
	handlers map[Intent]handler
}

func NewController(session *Session) *Controller {
	return &Controller{
		session: session,
		handlers: map[Intent]handler{
			IntentSyncDocs:       handleSyncDocs,
			IntentRetryDocuments: handleSyncDocs,
			IntentSelectDocument: handleSelect,
			IntentParseDocument:  handleParse,
			IntentRefreshDoc:     handleParse,
			IntentAutoMatch:      handleAutoMatch,
			IntentSetMatch:       handleSetMatch,
			IntentClearMatch:     handleClearMatch,
			IntentCreateProduct:  handleCreateProduct,
			IntentCreateReceipt:  handleCreateReceipt,
			IntentSignDoc:        handleSign,
			IntentSendDoc:        handleSend,
			IntentRejectDoc:      handleReject,
			IntentSyncStatus:     handleSyncStatus,
			IntentViewXML:        handleViewXML,
			IntentExportReceipt:  handleExport,
		},
	}
}

func (c *Controller) Session() *Session { return c.session }

// Init runs the first load of the page.
func (c *Controller) Init(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Init(ctx)
	return Result{View: c.session.View(), Notices: c.session.drainNotices()}
}

// View renders the current state without running an action.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.View()
}

// Dispatch runs one command. Failures come back as notices, never as errors.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	res := Result{Intent: cmd.Intent}
	h, ok := c.handlers[cmd.Intent]
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("%w: %q", ErrUnknownIntent, cmd.Intent)
	default:
		if cmd.DocflowId == "" {
			cmd.DocflowId = s.selected
		}
		if err = utils.ValidateStruct(cmd); err == nil {
			res.Attachment, err = h(ctx, c, cmd)
		}
	}
	if err != nil {
		s.notify(NoticeError, cmd.DocflowId, err.Error())
		if !isExpected(err) {
			config.LogWarn(s.logger, moduleName, "Dispatch", string(cmd.Intent), cmd.DocflowId, err)
		}
	}
	res.View = s.View()
	res.Notices = s.drainNotices()
	if res.Notices == nil {
		res.Notices = []Notice{}
	}
	return res
}

func isExpected(err error) bool {
	for _, target := range []error{
		ErrReceiptNotReady, ErrReasonRequired, ErrDocumentNotFound, ErrLineNotFound,
		ErrProductRequired, ErrInvalidTransition, ErrXMLNotLoaded, ErrReceiptExists,
		ErrBackendNotConfigured,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var be *BackendError
	return errors.As(err, &be)
}

func requireDoc(cmd Command) error {
	if cmd.DocflowId == "" {
		return ErrDocumentNotFound
	}
	return nil
}

func requireLine(cmd Command) (int, error) {
	if err := requireDoc(cmd); err != nil {
		return 0, err
	}
	if cmd.LineIndex == nil {
		return 0, ErrLineNotFound
	}
	return *cmd.LineIndex, nil
}

func handleSyncDocs(ctx context.Context, c *Controller, _ Command) (*Attachment, error) {
	c.session.SyncDocuments(ctx)
	return nil, nil
}

func handleSelect(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.SelectDocument(ctx, cmd.DocflowId)
}

func handleParse(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.Parse(ctx, cmd.DocflowId)
}

func handleAutoMatch(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.AutoMatch(ctx, cmd.DocflowId)
}

func handleSetMatch(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	idx, err := requireLine(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Match == nil {
		return nil, ErrProductRequired
	}
	err = c.session.SetMatch(ctx, cmd.DocflowId, idx, cmd.Match)
	var be *BackendError
	if err != nil && (errors.As(err, &be) || !isExpected(err)) {
		c.session.RefreshLines(ctx, cmd.DocflowId)
	}
	return nil, err
}

func handleClearMatch(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	idx, err := requireLine(cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.session.ClearMatch(ctx, cmd.DocflowId, idx)
}

func handleCreateProduct(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	idx, err := requireLine(cmd)
	if err != nil {
		return nil, err
	}
	var draft ProductDraft
	if cmd.Product != nil {
		draft = *cmd.Product
	}
	_, err = c.session.CreateProductForLine(ctx, cmd.DocflowId, idx, draft)
	return nil, err
}

func handleCreateReceipt(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.CreateReceipt(ctx, cmd.DocflowId)
}

func handleSign(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.Sign(ctx, cmd.DocflowId)
}

func handleSend(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.Send(ctx, cmd.DocflowId)
}

func handleReject(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.Reject(ctx, cmd.DocflowId, cmd.Reason)
}

func handleSyncStatus(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	return nil, c.session.SyncStatus(ctx, cmd.DocflowId)
}

func handleViewXML(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	xml, err := c.session.ParsedXML(cmd.DocflowId)
	if err != nil {
		return nil, err
	}
	att := &Attachment{Name: cmd.DocflowId + ".xml", ContentType: "application/xml", Text: xml}
	if ds := c.session.store[cmd.DocflowId]; ds.xmlObject != "" && c.session.opts.Archive != nil {
		if url, uerr := c.session.opts.Archive.URL(ctx, ds.xmlObject); uerr == nil {
			att.URL = url
		}
	}
	return att, nil
}

func handleExport(ctx context.Context, c *Controller, cmd Command) (*Attachment, error) {
	if err := requireDoc(cmd); err != nil {
		return nil, err
	}
	s := c.session
	doc, ok := s.findDocument(cmd.DocflowId)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	draft, err := s.ReceiptDraft(cmd.DocflowId)
	if err != nil {
		return nil, err
	}
	f, err := ExportReceiptDraft(draft, doc)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("receipt-%s-%s.xlsx", cmd.DocflowId, utils.GenerateUniqueFilename())
	att := &Attachment{Name: name, ContentType: exportContentType}
	if s.opts.Archive != nil {
		object := "edo/" + cmd.DocflowId + "/" + name
		if err := s.opts.Archive.Put(ctx, object, exportContentType, buf.Bytes()); err == nil {
			if url, err := s.opts.Archive.URL(ctx, object); err == nil {
				att.URL = url
				return att, nil
			}
		} else {
			config.LogWarn(s.logger, moduleName, "handleExport", cmd.DocflowId, object, err)
		}
	}
	att.Base64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return att, nil
}

// View renders the session. Lines without backend candidates are scored against the catalog on
// every call.
func (s *Session) View() View {
	v := View{
		SessionId:    s.id,
		ServerConfig: s.serverConfig,
		Banner:       s.banner,
		Documents:    make([]DocumentSummary, 0, len(s.documents)),
		SelectedId:   s.selected,
		CatalogSize:  len(s.catalog),
		Activity:     s.Activity(),
	}
	for _, doc := range s.documents {
		v.Documents = append(v.Documents, DocumentSummary{Document: doc, Status: s.EffectiveStatus(doc.DocflowId)})
	}
	ds, ok := s.store[s.selected]
	if !ok {
		return v
	}
	draft := draftOf(ds)
	dv := &DocumentView{
		Document:      ds.document,
		Status:        effectiveStatus(ds),
		Lines:         make([]LineView, 0, len(ds.lines)),
		Draft:         draft,
		Unmatched:     draft.Unmatched(),
		ReceiptId:     ds.receiptId,
		ReceiptStatus: ds.receiptStatus,
		Placeholder:   ds.placeholder,
		HasXML:        ds.parsedXML != "",
		History:       append([]LogEntry(nil), ds.history...),
	}
	for _, line := range ds.lines {
		dv.Lines = append(dv.Lines, LineView{
			Line:       line,
			Match:      s.MatchFor(s.selected, line.Index),
			Candidates: s.CandidatesFor(s.selected, line.Index),
			Total:      lineTotal(line).StringFixed(2),
		})
	}
	v.Selected = dv
	return v
}

// lineTotal is quantity times unit price, rounded for display.
func lineTotal(line Line) decimal.Decimal {
	return line.Quantity.Mul(line.Price).Round(2)
}
