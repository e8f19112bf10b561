package books

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/generator"
	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/store"
)

type GenerateResult = generator.Result

type GenerateOptions struct {
	// AutoPost overrides the service default when set.
	AutoPost *bool
	User     string
}

// CreateEntryFromDocument derives an entry from a sales invoice. Calling it
// again for the same document returns the existing entry with Created
// false.
func (s *Service) CreateEntryFromDocument(ctx context.Context, doc *ledger.SaleDocument, opts GenerateOptions) (*GenerateResult, error) {
	if doc.CompanyID == "" {
		return nil, &ledger.ValidationError{Problems: []string{"company_id failed required"}}
	}
	log := s.log.With(zap.String("company_id", doc.CompanyID), zap.String("document_id", doc.ID))

	ref := s.gen.Reference(doc)
	if existing, err := s.store.GetEntryByReference(ctx, doc.CompanyID, ref); err == nil {
		log.Info("document already recorded",
			zap.String("entry_id", existing.ID),
			zap.String("number", existing.Number),
			zap.Bool("partial", existing.IsPartial()),
		)
		return recorded(existing), nil
	} else if !errors.Is(err, ledger.ErrEntryNotFound) {
		return nil, err
	}

	chart, err := s.store.Chart(ctx, doc.CompanyID)
	if err != nil {
		return nil, err
	}
	res, err := s.gen.Build(ctx, doc, chart)
	if err != nil {
		return nil, err
	}

	post := s.opts.AutoPost
	if opts.AutoPost != nil {
		post = *opts.AutoPost
	}
	entry := res.Entry
	entry.CreatedBy = opts.User
	if post {
		entry.State = ledger.StatePosted
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			existing, gerr := s.store.GetEntryByReference(ctx, doc.CompanyID, ref)
			if gerr != nil {
				return nil, gerr
			}
			return recorded(existing), nil
		}
		return nil, err
	}

	log.Info("entry generated from document",
		zap.String("entry_id", entry.ID),
		zap.String("number", entry.Number),
		zap.String("state", string(entry.State)),
		zap.Bool("partial", res.Partial),
	)
	if entry.State == ledger.StatePosted {
		s.emit(ctx, PostingEvent{Kind: EventPosted, CompanyID: entry.CompanyID, Entry: entry, User: opts.User})
	}
	return res, nil
}

// recorded is the result for a document whose entry already exists. The
// omissions stored with the entry are reported again.
func recorded(e *ledger.Entry) *GenerateResult {
	return &GenerateResult{Entry: e, Created: false, Omissions: e.Omissions, Partial: e.IsPartial()}
}

// CreateEntry records a manual entry. It is stored as a draft unless its
// State is StatePosted, in which case it is posted atomically.
func (s *Service) CreateEntry(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	switch e.State {
	case "", ledger.StateDraft, ledger.StatePosted:
	default:
		return nil, &ledger.ValidationError{Problems: []string{fmt.Sprintf("new entries cannot be %s", e.State)}}
	}
	if e.ReversalOf != "" {
		return nil, &ledger.ValidationError{Problems: []string{"reversing entries are created by cancelling"}}
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("entry created",
		zap.String("company_id", e.CompanyID),
		zap.String("entry_id", e.ID),
		zap.String("number", e.Number),
		zap.String("state", string(e.State)),
	)
	if e.State == ledger.StatePosted {
		s.emit(ctx, PostingEvent{Kind: EventPosted, CompanyID: e.CompanyID, Entry: e, User: e.CreatedBy})
	}
	return e, nil
}

func (s *Service) GetEntry(ctx context.Context, companyID, id string) (*ledger.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if companyID != "" && e.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	return e, nil
}

func (s *Service) ListEntries(ctx context.Context, filter store.EntryFilter) ([]ledger.Entry, error) {
	return s.store.ListEntries(ctx, filter)
}

func (s *Service) AddLine(ctx context.Context, companyID, entryID string, l *ledger.Line) (*ledger.Entry, error) {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return nil, err
	}
	return s.store.AddLine(ctx, entryID, l)
}

func (s *Service) UpdateLine(ctx context.Context, companyID, entryID, lineID string, l *ledger.Line) (*ledger.Entry, error) {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return nil, err
	}
	return s.store.UpdateLine(ctx, entryID, lineID, l)
}

func (s *Service) RemoveLine(ctx context.Context, companyID, entryID, lineID string) (*ledger.Entry, error) {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return nil, err
	}
	return s.store.RemoveLine(ctx, entryID, lineID)
}

func (s *Service) DeleteDraft(ctx context.Context, companyID, entryID string) error {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return err
	}
	return s.store.DeleteDraft(ctx, entryID)
}

// PostEntry moves a balanced draft to posted and notifies hooks.
func (s *Service) PostEntry(ctx context.Context, companyID, entryID, user string) (*ledger.Entry, error) {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return nil, err
	}
	e, err := s.store.PostEntry(ctx, entryID, user)
	if err != nil {
		return nil, err
	}
	s.log.Info("entry posted",
		zap.String("company_id", e.CompanyID),
		zap.String("entry_id", e.ID),
		zap.String("number", e.Number),
		zap.String("user", user),
	)
	s.emit(ctx, PostingEvent{Kind: EventPosted, CompanyID: e.CompanyID, Entry: e, User: user})
	return e, nil
}

// CancelEntry reverses a posted entry with a new posted entry dated today
// and returns the reversal. The original is kept and marked cancelled.
func (s *Service) CancelEntry(ctx context.Context, companyID, entryID, user string) (*ledger.Entry, error) {
	if _, err := s.GetEntry(ctx, companyID, entryID); err != nil {
		return nil, err
	}
	orig, rev, err := s.store.CancelEntry(ctx, entryID, user, s.today())
	if err != nil {
		return nil, err
	}
	s.log.Info("entry cancelled",
		zap.String("company_id", orig.CompanyID),
		zap.String("entry_id", orig.ID),
		zap.String("number", orig.Number),
		zap.String("reversal_id", rev.ID),
		zap.String("reversal_number", rev.Number),
		zap.String("user", user),
	)
	s.emit(ctx, PostingEvent{Kind: EventCancelled, CompanyID: orig.CompanyID, Entry: orig, Reversal: rev, User: user})
	return rev, nil
}
