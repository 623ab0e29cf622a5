package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidDate          = "invalid_date"
	codeInvalidAmount        = "invalid_amount"
	codeInvalidPaymentKind   = "invalid_payment_kind"
	codeInvalidPaymentStatus = "invalid_payment_status"
	codeInvalidID            = "invalid_id"
	codeInvalidQuery         = "invalid_query"
	codeInvalidDateRange     = "invalid_date_range"
	codeOutOfStock           = "out_of_stock"
	codeAlreadyReturned      = "already_returned"
	codeBorrowNotFound       = "borrow_not_found"
	codeTitleNotFound        = "title_not_found"
	codePaymentNotFound      = "payment_not_found"
	codePaymentUnavailable   = "payment_provider_unavailable"
	codeTitleNameRequired    = "title_name_required"
	codeBorrowerRequired     = "borrower_required"
	codeInvalidStock         = "invalid_stock"
	codeInvalidFee           = "invalid_fee"
	codeInvalidCover         = "invalid_cover"
	codeForbidden            = "forbidden"
	codeUnavailable          = "unavailable"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidID, http.StatusNotFound, codeInvalidID},
	{domain.ErrTitleNotFound, http.StatusNotFound, codeTitleNotFound},
	{domain.ErrBorrowNotFound, http.StatusNotFound, codeBorrowNotFound},
	{domain.ErrPaymentNotFound, http.StatusNotFound, codePaymentNotFound},
	{domain.ErrOutOfStock, http.StatusConflict, codeOutOfStock},
	{domain.ErrAlreadyReturned, http.StatusConflict, codeAlreadyReturned},
	{domain.ErrInvalidDateRange, http.StatusBadRequest, codeInvalidDateRange},
	{domain.ErrBorrowerRequired, http.StatusBadRequest, codeBorrowerRequired},
	{domain.ErrTitleNameRequired, http.StatusBadRequest, codeTitleNameRequired},
	{domain.ErrInvalidStock, http.StatusBadRequest, codeInvalidStock},
	{domain.ErrInvalidFee, http.StatusBadRequest, codeInvalidFee},
	{domain.ErrInvalidCover, http.StatusBadRequest, codeInvalidCover},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrInvalidPaymentKind, http.StatusBadRequest, codeInvalidPaymentKind},
	{domain.ErrInvalidPaymentStatus, http.StatusBadRequest, codeInvalidPaymentStatus},
	{domain.ErrPaymentProviderUnavailable, http.StatusBadGateway, codePaymentUnavailable},
}

// writeDomainError maps a service error onto the response envelope. Unknown
// errors become a 500 without leaking their text.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			if verrs[0].Tag() == "required" {
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "missing required field: "+field)
				return false
			}
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid field: "+field)
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

// pathParts splits a request path below prefix into its segments.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
