package server

import (
	"net/http"
	"time"
)

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, err := period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tb, err := s.books.TrialBalance(r.Context(), param(r, "companyID"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, err := period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	is, err := s.books.IncomeStatement(r.Context(), param(r, "companyID"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

// balanceSheet reads as_of, falling back to to and then today.
func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var at time.Time
	if asOf != nil {
		at = *asOf
	} else if _, at, err = period(r); err != nil {
		writeError(w, r, err)
		return
	}
	bs, err := s.books.BalanceSheet(r.Context(), param(r, "companyID"), at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, err := period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cf, err := s.books.CashFlow(r.Context(), param(r, "companyID"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cf)
}
