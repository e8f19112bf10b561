package server

import (
	"net/http"

	"github.com/simonvc/ledgerd/internal/ledger"
)

type createCompanyRequest struct {
	Name  string `json:"name" validate:"required"`
	TaxID string `json:"tax_id"`
	// SeedChart defaults to true.
	SeedChart *bool `json:"seed_chart"`
}

func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	seed := req.SeedChart == nil || *req.SeedChart

	c := &ledger.Company{Name: req.Name, TaxID: req.TaxID}
	if err := s.books.CreateCompany(r.Context(), c, seed); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.books.ListCompanies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if companies == nil {
		companies = []ledger.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.books.GetCompany(r.Context(), param(r, "companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
