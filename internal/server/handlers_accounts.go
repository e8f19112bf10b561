package server

import (
	"net/http"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/store"
)

type createAccountRequest struct {
	Code              string               `json:"code" validate:"required"`
	Name              string               `json:"name" validate:"required"`
	Type              ledger.AccountType   `json:"type" validate:"required,oneof=asset liability equity income expense"`
	ParentID          string               `json:"parent_id"`
	ParentCode        string               `json:"parent_code"`
	RequiresAuxiliary bool                 `json:"requires_auxiliary"`
	AuxiliaryKind     ledger.AuxiliaryKind `json:"auxiliary_kind"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	companyID := param(r, "companyID")
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	parentID := req.ParentID
	if parentID == "" && req.ParentCode != "" {
		parent, err := s.books.GetAccountByCode(r.Context(), companyID, req.ParentCode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		parentID = parent.ID
	}

	acct := &ledger.Account{
		CompanyID:         companyID,
		Code:              req.Code,
		Name:              req.Name,
		Type:              req.Type,
		ParentID:          parentID,
		RequiresAuxiliary: req.RequiresAuxiliary,
		AuxiliaryKind:     req.AuxiliaryKind,
	}
	if err := s.books.CreateAccount(r.Context(), acct); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AccountFilter{
		CompanyID: param(r, "companyID"),
		Type:      ledger.AccountType(q.Get("type")),
		LeafOnly:  q.Get("leaf") == "true" || q.Get("leaf") == "1",
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	accounts, err := s.books.ListAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) seedChart(w http.ResponseWriter, r *http.Request) {
	created, err := s.books.SeedChart(r.Context(), param(r, "companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created == nil {
		created = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.books.GetAccount(r.Context(), param(r, "companyID"), param(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type moveAccountRequest struct {
	// ParentID empty moves the account to the root.
	ParentID string `json:"parent_id"`
}

func (s *Server) moveAccount(w http.ResponseWriter, r *http.Request) {
	var req moveAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	changed, err := s.books.MoveAccount(r.Context(), param(r, "companyID"), param(r, "id"), req.ParentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changed == nil {
		changed = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, changed)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.books.DeleteAccount(r.Context(), param(r, "companyID"), param(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// accountBalance accepts an optional from and a to defaulting to today.
func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, to, err := period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.books.ComputeBalance(r.Context(), param(r, "companyID"), param(r, "id"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) generalLedger(w http.ResponseWriter, r *http.Request) {
	from, to, err := period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gl, err := s.books.GeneralLedger(r.Context(), param(r, "companyID"), param(r, "id"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gl)
}
