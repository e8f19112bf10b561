package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/logger"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapError(err)
	resp := errorResponse{Error: err.Error()}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		resp.Error = ledger.ErrValidation.Error()
		resp.Details = verr.Problems
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCompanyNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrAccountInUse),
		errors.Is(err, ledger.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrInvalidAccountCode),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrInvalidAuxiliaryKind),
		errors.Is(err, ledger.ErrAccountNameRequired),
		errors.Is(err, ledger.ErrCompanyRequired):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrHierarchy),
		errors.Is(err, ledger.ErrAccountNotConfigured):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return &ledger.ValidationError{Problems: []string{"invalid JSON: " + err.Error()}}
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := decodeJSON(r, v, false); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		verr := &ledger.ValidationError{}
		for _, fe := range fieldErrs {
			_, field, _ := strings.Cut(fe.Namespace(), ".")
			verr.Add("%s failed %s", field, fe.Tag())
		}
		return verr
	}
	return nil
}

func param(r *http.Request, name string) string {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return chi.URLParam(r, name)
	}
	return v
}

func parseDate(s, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Problems: []string{fmt.Sprintf("%s must be a date like 2006-01-02, got %q", field, s)}}
	}
	return t, nil
}

// queryDate reads an optional date query parameter.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// period reads from and to. A missing to means today, a missing from the
// first day of to's month.
func period(r *http.Request) (from, to time.Time, err error) {
	toPtr, err := queryDate(r, "to")
	if err != nil {
		return from, to, err
	}
	if toPtr != nil {
		to = *toPtr
	} else {
		n := time.Now().UTC()
		to = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	}
	fromPtr, err := queryDate(r, "from")
	if err != nil {
		return from, to, err
	}
	if fromPtr != nil {
		from = *fromPtr
	} else {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return from, to, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &ledger.ValidationError{Problems: []string{fmt.Sprintf("%s must be a non-negative integer", name)}}
	}
	return n, nil
}
