package edo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmdatafocus/kitchen_admin/utils"
)

// SetMatch binds a product to a line, or clears the line's match when in is nil.
func (s *Session) SetMatch(ctx context.Context, docflowID string, index int, in *MatchInput) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	if _, ok := ds.line(index); !ok {
		return ErrLineNotFound
	}
	var input *MatchInput
	if in != nil {
		cp := *in
		cp.ProductId = strings.TrimSpace(cp.ProductId)
		if cp.ProductId == "" {
			return ErrProductRequired
		}
		if cp.Source == "" {
			cp.Source = SourceManual
		}
		if cp.Manual == nil {
			cp.Manual = utils.NewTrue()
		}
		input = &cp
	}

	payload, err := s.backend.SetMatch(ctx, docflowID, index, input)
	switch {
	case err == nil && payload != nil:
		s.applyPayload(ds, *payload)
	case err == nil, errors.Is(err, ErrBackendNotConfigured):
		s.applyLocalMatch(ds, index, input)
	default:
		s.warn("SetMatch", docflowID, err)
		return err
	}

	if input == nil {
		s.appendHistory(ctx, ds, fmt.Sprintf("Line %d: match cleared", index+1))
	} else {
		s.appendHistory(ctx, ds, fmt.Sprintf("Line %d: matched to %s", index+1, s.productName(input.ProductId)))
	}
	return nil
}

// ClearMatch removes the line's match.
func (s *Session) ClearMatch(ctx context.Context, docflowID string, index int) error {
	return s.SetMatch(ctx, docflowID, index, nil)
}

func (s *Session) applyLocalMatch(ds *docState, index int, in *MatchInput) {
	if in == nil {
		delete(ds.matches, index)
		return
	}
	m := &Match{
		ProductId: in.ProductId,
		Name:      in.ProductId,
		Source:    in.Source,
		Manual:    utils.DereferencePtr(in.Manual, true),
		Comment:   in.Comment,
	}
	if in.Score != nil {
		m.Score = *in.Score
	}
	if p, ok := s.product(in.ProductId); ok {
		m.Name = p.Name
		m.Type = p.Type
	}
	ds.matches[index] = m
}

func (s *Session) product(id string) (Product, bool) {
	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (s *Session) productName(id string) string {
	if p, ok := s.product(id); ok {
		return p.Name
	}
	return id
}

// CreateProductForLine mints a catalog product from an unmatched line and binds it manually.
// Blank draft fields are filled from the line.
func (s *Session) CreateProductForLine(ctx context.Context, docflowID string, index int, draft ProductDraft) (Product, error) {
	ds, err := s.doc(docflowID)
	if err != nil {
		return Product{}, err
	}
	line, ok := ds.line(index)
	if !ok {
		return Product{}, ErrLineNotFound
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		draft.Name = line.Name
	}
	if draft.Type == "" {
		draft.Type = ProductTypeIngredient
	}
	if draft.Barcode == "" {
		draft.Barcode = line.Barcode
	}
	if draft.Article == "" {
		draft.Article = line.Article
	}
	if draft.VatRate == "" {
		draft.VatRate = line.VatRate
	}
	if len(draft.Synonyms) == 0 && strings.TrimSpace(line.Name) != "" {
		draft.Synonyms = []string{line.Name}
	}
	if err := utils.ValidateStruct(draft); err != nil {
		return Product{}, err
	}

	product, err := s.backend.CreateProduct(ctx, draft)
	switch {
	case err == nil:
	case errors.Is(err, ErrBackendNotConfigured):
		product = Product{
			ID:       "local-" + uuid.NewString(),
			Type:     draft.Type,
			Name:     draft.Name,
			Barcode:  draft.Barcode,
			Article:  draft.Article,
			VatRate:  draft.VatRate,
			Synonyms: draft.Synonyms,
		}
		s.notify(NoticeWarning, docflowID, "Product created locally only (demo mode, EDO API not configured)")
	default:
		s.warn("CreateProductForLine", docflowID, err)
		return Product{}, err
	}
	if product.ID == "" {
		return Product{}, &BackendError{Message: "backend returned a product without id"}
	}

	s.catalog = append(s.catalog, product)
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate(ctx)
	}
	s.log(ctx, docflowID, "New product card created: "+product.Name)

	score := 1.0
	return product, s.SetMatch(ctx, docflowID, index, &MatchInput{
		ProductId: product.ID,
		Source:    SourceManual,
		Score:     &score,
		Manual:    utils.NewTrue(),
	})
}

// AutoMatch asks the backend to match the document's lines, falling back to local matching.
func (s *Session) AutoMatch(ctx context.Context, docflowID string) error {
	ds, err := s.doc(docflowID)
	if err != nil {
		return err
	}
	result, err := s.backend.AutoMatch(ctx, docflowID, RemoteAutoMatchThreshold)
	if err != nil {
		s.warn("AutoMatch", docflowID, err)
		s.AutoMatchLocal(ctx, docflowID)
		return nil
	}
	if result.Lines != nil {
		s.applyPayloads(ds, result.Lines)
	}
	if result.Matched != nil {
		s.appendHistory(ctx, ds, fmt.Sprintf("Auto-match: %d lines matched", *result.Matched))
	}
	return nil
}

// AutoMatchLocal accepts each unmatched line's top candidate when it reaches the threshold.
// Existing matches are never replaced. It returns the number of lines matched.
func (s *Session) AutoMatchLocal(ctx context.Context, docflowID string) int {
	ds, ok := s.store[docflowID]
	if !ok {
		return 0
	}
	matched := 0
	for _, line := range ds.lines {
		candidates := BuildCandidates(line, s.catalog)
		if ds.matches[line.Index] != nil || len(candidates) == 0 {
			continue
		}
		top := candidates[0]
		if top.Score < float64(s.opts.Threshold) {
			continue
		}
		ds.matches[line.Index] = &Match{
			ProductId: top.Product.ID,
			Name:      top.Product.Name,
			Type:      top.Product.Type,
			Source:    top.Source,
			Score:     top.Score,
			Manual:    false,
		}
		matched++
	}
	s.appendHistory(ctx, ds, "Auto-match ran locally (offline mode)")
	return matched
}
