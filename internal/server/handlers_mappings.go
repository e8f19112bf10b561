package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/resolver"
)

type setTaxMappingRequest struct {
	AccountID          string `json:"account_id" validate:"required"`
	RetentionAccountID string `json:"retention_account_id"`
}

func (s *Server) setTaxMapping(w http.ResponseWriter, r *http.Request) {
	rate, err := decimal.NewFromString(param(r, "rate"))
	if err != nil {
		writeError(w, r, &ledger.ValidationError{Problems: []string{"rate must be a number"}})
		return
	}
	var req setTaxMappingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m := &ledger.TaxMapping{
		CompanyID:          param(r, "companyID"),
		Rate:               rate,
		AccountID:          req.AccountID,
		RetentionAccountID: req.RetentionAccountID,
	}
	if err := s.books.SetTaxMapping(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listTaxMappings(w http.ResponseWriter, r *http.Request) {
	list, err := s.books.TaxMappings(r.Context(), param(r, "companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []ledger.TaxMapping{}
	}
	writeJSON(w, http.StatusOK, list)
}

type setAccountDefaultRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

func (s *Server) setAccountDefault(w http.ResponseWriter, r *http.Request) {
	var req setAccountDefaultRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d := ledger.AccountDefault{
		CompanyID: param(r, "companyID"),
		Purpose:   ledger.Purpose(param(r, "purpose")),
		AccountID: req.AccountID,
	}
	if err := s.books.SetAccountDefault(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listAccountDefaults(w http.ResponseWriter, r *http.Request) {
	list, err := s.books.AccountDefaults(r.Context(), param(r, "companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []ledger.AccountDefault{}
	}
	writeJSON(w, http.StatusOK, list)
}

type resolveResponse struct {
	Purpose ledger.Purpose   `json:"purpose"`
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	Tier    string           `json:"tier"`
	Account ledger.Account   `json:"account"`
}

// resolveAccount answers which account generation would pick for
// ?purpose= and the optional ?rate=.
func (s *Server) resolveAccount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	need := resolver.Need{CompanyID: param(r, "companyID"), Purpose: ledger.Purpose(q.Get("purpose"))}
	if raw := q.Get("rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, &ledger.ValidationError{Problems: []string{"rate must be a number"}})
			return
		}
		need.Rate = &rate
	}
	res, err := s.books.Resolve(r.Context(), need)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Purpose: need.Purpose, Rate: need.Rate, Tier: res.Tier.String(), Account: res.Account})
}
