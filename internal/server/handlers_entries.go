package server

import (
	"net/http"

	"github.com/simonvc/ledgerd/internal/books"
	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/store"
)

type createEntryRequest struct {
	Date        string `json:"date" validate:"required"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	User        string `json:"user"`
	// Post records the entry as posted in the same transaction.
	Post  bool          `json:"post"`
	Lines []ledger.Line `json:"lines"`
}

type actionRequest struct {
	User string `json:"user"`
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := &ledger.Entry{
		CompanyID:   param(r, "companyID"),
		Date:        date,
		Reference:   req.Reference,
		Description: req.Description,
		CreatedBy:   req.User,
		State:       ledger.StateDraft,
		Lines:       req.Lines,
	}
	if req.Post {
		e.State = ledger.StatePosted
	}
	created, err := s.books.CreateEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := store.EntryFilter{
		CompanyID: param(r, "companyID"),
		State:     ledger.EntryState(r.URL.Query().Get("state")),
	}
	var err error
	if filter.From, err = queryDate(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.books.ListEntries(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.books.GetEntry(r.Context(), param(r, "companyID"), param(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.books.DeleteDraft(r.Context(), param(r, "companyID"), param(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addLine(w http.ResponseWriter, r *http.Request) {
	var l ledger.Line
	if err := decodeJSON(r, &l, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.books.AddLine(r.Context(), param(r, "companyID"), param(r, "id"), &l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) updateLine(w http.ResponseWriter, r *http.Request) {
	var l ledger.Line
	if err := decodeJSON(r, &l, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.books.UpdateLine(r.Context(), param(r, "companyID"), param(r, "id"), param(r, "lineID"), &l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	e, err := s.books.RemoveLine(r.Context(), param(r, "companyID"), param(r, "id"), param(r, "lineID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.books.PostEntry(r.Context(), param(r, "companyID"), param(r, "id"), req.User)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// cancelEntry responds with the reversing entry.
func (s *Server) cancelEntry(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	rev, err := s.books.CancelEntry(r.Context(), param(r, "companyID"), param(r, "id"), req.User)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// saleRequest is a SaleDocument whose date is a plain calendar day. The
// company comes from the URL.
type saleRequest struct {
	ledger.SaleDocument
	Date     string `json:"date"`
	AutoPost *bool  `json:"auto_post,omitempty"`
	User     string `json:"user,omitempty"`
}

func (s *Server) generateFromSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc := req.SaleDocument
	doc.CompanyID = param(r, "companyID")
	doc.Date = date

	res, err := s.books.CreateEntryFromDocument(r.Context(), &doc, books.GenerateOptions{AutoPost: req.AutoPost, User: req.User})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
