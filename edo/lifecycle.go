package edo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/kitchen_admin/utils"
)

// ReceiptDraft derives the receipt from the document's current lines and matches.
func (s *Session) ReceiptDraft(docflowID string) (ReceiptDraft, error) {
	ds, ok := s.store[docflowID]
	if !ok {
		if _, found := s.findDocument(docflowID); !found {
			return ReceiptDraft{}, ErrDocumentNotFound
		}
		return ReceiptDraft{Items: []ReceiptItem{}, Total: decimal.Zero}, nil
	}
	return draftOf(ds), nil
}

func draftOf(ds *docState) ReceiptDraft {
	draft := ReceiptDraft{Items: make([]ReceiptItem, 0, len(ds.lines)), Total: decimal.Zero}
	ready := len(ds.lines) > 0
	for _, line := range ds.lines {
		m := ds.matches[line.Index]
		item := ReceiptItem{Line: line, Ready: m != nil, Total: line.Quantity.Mul(line.Price)}
		if m != nil {
			cp := *m
			item.Match = &cp
		}
		ready = ready && item.Ready
		draft.Total = draft.Total.Add(item.Total)
		draft.Items = append(draft.Items, item)
	}
	draft.Ready = ready
	return draft
}

// EffectiveStatus reports the lifecycle state, deriving lines-pending and lines-matched from
// the lines and their matches.
func (s *Session) EffectiveStatus(docflowID string) Status {
	ds, ok := s.store[docflowID]
	if !ok {
		if doc, found := s.findDocument(docflowID); found && doc.Status != "" {
			return doc.Status
		}
		return StatusIncoming
	}
	return effectiveStatus(ds)
}

func effectiveStatus(ds *docState) Status {
	switch ds.status {
	case "", StatusIncoming, StatusLinesPending, StatusLinesMatched:
		if len(ds.lines) == 0 {
			return StatusIncoming
		}
		if draftOf(ds).Ready {
			return StatusLinesMatched
		}
		return StatusLinesPending
	}
	return ds.status
}

// CreateReceipt posts the receipt for a fully matched document.
func (s *Session) CreateReceipt(ctx context.Context, docflowID string) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	draft := draftOf(ds)
	if !draft.Ready {
		return ErrReceiptNotReady
	}
	if from := effectiveStatus(ds); from.IsTerminal() {
		return &TransitionError{Action: "create a receipt for", From: from}
	}
	if ds.receiptId != "" {
		return ErrReceiptExists
	}

	if s.opts.Locker != nil {
		release, lerr := s.opts.Locker.Lock(ctx, "lock:edo-receipt:"+docflowID)
		if lerr != nil {
			s.warn("CreateReceipt", docflowID, lerr)
		}
		if release != nil {
			defer release()
		}
	}

	receiptID, err := s.backend.CreateReceipt(ctx, s.receiptRequest(ds, draft))
	if err == nil && strings.TrimSpace(receiptID) == "" {
		err = &BackendError{Message: "backend returned no receipt id"}
	}
	if err != nil {
		s.warn("CreateReceipt", docflowID, err)
		s.appendHistory(ctx, ds, "Could not create receipt: "+err.Error())
		s.log(ctx, docflowID, "Receipt creation failed: "+err.Error())
		return err
	}

	ds.receiptId = receiptID
	ds.receiptStatus = "draft"
	switch ds.status {
	case "", StatusIncoming, StatusLinesPending, StatusLinesMatched:
		ds.status = StatusReceiptCreated
	}
	s.appendHistory(ctx, ds, "Receipt #"+receiptID+" created")
	s.log(ctx, docflowID, "Receipt #"+receiptID+" created")
	s.notify(NoticeInfo, docflowID, "Receipt #"+receiptID+" created")
	s.emit(ctx, Event{DocflowId: docflowID, Type: EventReceiptCreated, Status: ds.status, ReceiptId: receiptID})
	return nil
}

func (s *Session) receiptRequest(ds *docState, draft ReceiptDraft) ReceiptRequest {
	req := ReceiptRequest{
		EdoDocumentId: ds.document.DocflowId,
		WarehouseId:   s.opts.WarehouseId,
		Lines:         make([]ReceiptLine, 0, len(draft.Items)),
	}
	for _, item := range draft.Items {
		req.Lines = append(req.Lines, ReceiptLine{
			EdoLineId: item.Line.Index,
			ProductId: item.Match.ProductId,
			Qty:       item.Line.Quantity,
			Price:     item.Line.Price,
			VatRate:   optional(item.Line.VatRate),
			Batch:     optional(utils.FirstString(item.Line.Raw, "batch", "BatchNumber")),
			Expiry:    optional(utils.FirstString(item.Line.Raw, "expiry", "ExpiryDate")),
		})
	}
	return req
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

type transition struct {
	action  string
	target  Status
	event   EventType
	allowed func(Status) bool
	call    func(ctx context.Context) error
	done    string
	failed  string
	reason  string
}

// Sign signs the document with the operator's qualified signature.
func (s *Session) Sign(ctx context.Context, docflowID string) error {
	return s.transition(ctx, docflowID, transition{
		action: "sign",
		target: StatusSigned,
		event:  EventSigned,
		allowed: func(from Status) bool { return !from.IsTerminal() },
		call:    func(ctx context.Context) error { return s.backend.Sign(ctx, docflowID) },
		done:    "Document signed",
		failed:  "Signing failed",
	})
}

// Send delivers the signed buyer title to the counterparty.
func (s *Session) Send(ctx context.Context, docflowID string) error {
	return s.transition(ctx, docflowID, transition{
		action:  "send",
		target:  StatusSent,
		event:   EventSent,
		allowed: func(from Status) bool { return from == StatusSigned },
		call:    func(ctx context.Context) error { return s.backend.Send(ctx, docflowID) },
		done:    "Buyer title sent to the counterparty",
		failed:  "Sending failed",
	})
}

// Reject refuses the document. The reason must not be blank.
func (s *Session) Reject(ctx context.Context, docflowID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	return s.transition(ctx, docflowID, transition{
		action:  "reject",
		target:  StatusRejected,
		event:   EventRejected,
		allowed: func(from Status) bool { return !from.IsTerminal() },
		call:    func(ctx context.Context) error { return s.backend.Reject(ctx, docflowID, reason) },
		done:    "Rejected: " + reason,
		failed:  "Rejection failed",
		reason:  reason,
	})
}

func (s *Session) transition(ctx context.Context, docflowID string, t transition) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	from := effectiveStatus(ds)
	if !t.allowed(from) {
		return &TransitionError{Action: t.action, From: from}
	}

	demo := false
	if err := t.call(ctx); err != nil {
		if !errors.Is(err, ErrBackendNotConfigured) || s.opts.DisableDemoFallback {
			s.warn(t.action, docflowID, err)
			s.appendHistory(ctx, ds, t.failed+": "+err.Error())
			s.log(ctx, docflowID, t.failed+": "+err.Error())
			return err
		}
		demo = true
	}

	ds.status = t.target
	message := t.done
	if demo {
		message += " (demo mode, EDO API not configured)"
		s.notify(NoticeWarning, docflowID, message)
	} else {
		s.notify(NoticeInfo, docflowID, message)
	}
	s.appendHistory(ctx, ds, message)
	s.log(ctx, docflowID, message)
	s.emit(ctx, Event{DocflowId: docflowID, Type: t.event, Status: t.target, Demo: demo, ReceiptId: ds.receiptId, Reason: t.reason})
	return nil
}

// SyncStatus asks the backend to refresh the document's docflow status and reloads it.
func (s *Session) SyncStatus(ctx context.Context, docflowID string) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	warning, err := s.backend.SyncStatus(ctx, docflowID)
	if err != nil {
		s.warn("SyncStatus", docflowID, err)
		return fmt.Errorf("sync status: %w", err)
	}
	if warning != "" {
		s.notify(NoticeWarning, docflowID, warning)
	}
	if s.loadDocuments(ctx) {
		if doc, ok := s.findDocument(docflowID); ok && doc.Status != "" && doc.Status != ds.status {
			ds.status = doc.Status
			s.appendHistory(ctx, ds, "Status synchronized: "+string(doc.Status))
		}
	}
	s.RefreshLines(ctx, docflowID)
	s.notify(NoticeInfo, docflowID, "Document status updated")
	return nil
}
