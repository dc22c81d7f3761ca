package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/importer"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/summary"
	"github.com/shopspring/decimal"
)

const (
	userHeader   = "X-User-ID"
	defaultUser  = "default"
	errorPreview = 10
	maxUpload    = 32 << 20
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Store // Keep a reference to the storage to close it
	summary summary.UserCache
}

func NewServer(s store.Store) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, s),
		storage: s,
	}
}

func userID(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(userHeader)); u != "" {
		return u
	}
	return defaultUser
}

// asOf reads the optional as_of query parameter, defaulting to today.
func asOf(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return models.Day(time.Now()), nil
	}
	return importer.ParseDate(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrImportInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrInsufficientAccountBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	case models.KindOf(err) != "", errors.Is(err, importer.ErrEmptyFile):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid "+what+" ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// ownedDebt loads the debt in the path and hides debts of other users.
func (s *Server) ownedDebt(w http.ResponseWriter, r *http.Request) (*models.Debt, bool) {
	id, ok := pathID(w, r, "debt")
	if !ok {
		return nil, false
	}
	debt, err := s.ledger.GetDebt(r.Context(), id)
	if err == nil && debt.UserID != userID(r) {
		err = fmt.Errorf("debt %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return debt, true
}

func parseOptionalDate(field, v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := importer.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

type debtRequest struct {
	BorrowerName    string            `json:"borrower_name"`
	BorrowerContact string            `json:"borrower_contact"`
	BorrowerEmail   string            `json:"borrower_email"`
	Amount          decimal.Decimal   `json:"amount"`
	InterestRate    decimal.Decimal   `json:"interest_rate"`
	LentDate        string            `json:"lent_date"`
	DueDate         string            `json:"due_date"`
	Status          models.DebtStatus `json:"status"`
	Purpose         string            `json:"purpose"`
	Notes           string            `json:"notes"`
	Account         string            `json:"account"` // id or name
	BankName        string            `json:"bank_name"`
}

func (s *Server) createDebtHandler(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := userID(r)

	in := ledger.DebtInput{
		BorrowerName:    req.BorrowerName,
		BorrowerContact: req.BorrowerContact,
		BorrowerEmail:   req.BorrowerEmail,
		Amount:          req.Amount,
		InterestRate:    req.InterestRate,
		Purpose:         req.Purpose,
		Notes:           req.Notes,
		BankName:        req.BankName,
	}
	if req.Status != "" {
		st, ok := models.ParseStatus(string(req.Status))
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown status %q", req.Status), http.StatusBadRequest)
			return
		}
		in.Status = st
	}
	lent, err := parseOptionalDate("lent_date", req.LentDate)
	if err != nil {
		writeError(w, err)
		return
	}
	if lent != nil {
		in.LentDate = *lent
	}
	if in.DueDate, err = parseOptionalDate("due_date", req.DueDate); err != nil {
		writeError(w, err)
		return
	}
	if req.Account != "" {
		account, err := s.storage.ResolveAccount(r.Context(), user, req.Account)
		if errors.Is(err, store.ErrNotFound) {
			err = models.Invalid(models.KindUnknownAccountReference, "account %q not found", req.Account)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		in.AccountID = &account.ID
		if in.BankName == "" {
			in.BankName = account.BankName
		}
	}

	debt, err := s.ledger.CreateDebt(r.Context(), user, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledger.View(debt, time.Now()))
}

func (s *Server) getDebtHandler(w http.ResponseWriter, r *http.Request) {
	on, err := asOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debt, ok := s.ownedDebt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ledger.View(debt, on))
}

// listDebtsHandler lists the user's debts, optionally filtered on the presented status.
func (s *Server) listDebtsHandler(w http.ResponseWriter, r *http.Request) {
	on, err := asOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debts, err := s.ledger.ListDebts(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := ledger.Views(debts, on)
	if raw := r.URL.Query().Get("status"); raw != "" {
		want, ok := models.ParseStatus(raw)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown status %q", raw), http.StatusBadRequest)
			return
		}
		filtered := views[:0]
		for _, v := range views {
			if v.EffectiveStatus == want {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	writeJSON(w, http.StatusOK, views)
}

type patchRequest struct {
	BorrowerName    *string            `json:"borrower_name"`
	BorrowerContact *string            `json:"borrower_contact"`
	BorrowerEmail   *string            `json:"borrower_email"`
	Amount          *decimal.Decimal   `json:"amount"`
	InterestRate    *decimal.Decimal   `json:"interest_rate"`
	LentDate        *string            `json:"lent_date"`
	DueDate         *string            `json:"due_date"` // "" clears
	Status          *models.DebtStatus `json:"status"`
	Purpose         *string            `json:"purpose"`
	Notes           *string            `json:"notes"`
	BankName        *string            `json:"bank_name"`
}

func (s *Server) editDebtHandler(w http.ResponseWriter, r *http.Request) {
	debt, ok := s.ownedDebt(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	patch := ledger.DebtPatch{
		BorrowerName:    req.BorrowerName,
		BorrowerContact: req.BorrowerContact,
		BorrowerEmail:   req.BorrowerEmail,
		Amount:          req.Amount,
		InterestRate:    req.InterestRate,
		Purpose:         req.Purpose,
		Notes:           req.Notes,
		BankName:        req.BankName,
	}
	if req.Status != nil {
		st, ok := models.ParseStatus(string(*req.Status))
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown status %q", *req.Status), http.StatusBadRequest)
			return
		}
		patch.Status = &st
	}
	if req.LentDate != nil {
		lent, err := importer.ParseDate(*req.LentDate)
		if err != nil {
			writeError(w, err)
			return
		}
		patch.LentDate = &lent
	}
	if req.DueDate != nil {
		due, err := parseOptionalDate("due_date", *req.DueDate)
		if err != nil {
			writeError(w, err)
			return
		}
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}

	updated, err := s.ledger.EditDebt(r.Context(), debt.ID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.View(updated, time.Now()))
}

func (s *Server) deleteDebtHandler(w http.ResponseWriter, r *http.Request) {
	debt, ok := s.ownedDebt(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteDebt(r.Context(), debt.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// ownedIDs keeps the ids of debts that belong to the caller.
func (s *Server) ownedIDs(r *http.Request, ids []uuid.UUID) ([]uuid.UUID, error) {
	debts, err := s.ledger.DeletionPreview(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	user := userID(r)
	var owned []uuid.UUID
	for _, d := range debts {
		if d.UserID == user {
			owned = append(owned, d.ID)
		}
	}
	return owned, nil
}

func (s *Server) bulkDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids, err := s.ownedIDs(r, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.ledger.BulkDelete(r.Context(), ids)
	resp := struct {
		Deleted int      `json:"deleted"`
		Errors  []string `json:"errors,omitempty"`
	}{Deleted: deleted}
	if err != nil {
		slog.Warn("bulk delete finished with errors", "deleted", deleted, "error", err)
		resp.Errors = strings.Split(err.Error(), "\n")
	}
	writeJSON(w, http.StatusOK, resp)
}

// deletionPreviewHandler reports what a bulk delete of the given ids would remove.
func (s *Server) deletionPreviewHandler(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	on, err := asOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debts, err := s.ledger.DeletionPreview(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	user := userID(r)
	owned := debts[:0]
	repayments := 0
	for _, d := range debts {
		if d.UserID == user {
			owned = append(owned, d)
			repayments += len(d.Repayments)
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Debts      []ledger.DebtView `json:"debts"`
		Repayments int               `json:"repayments"`
		Summary    summary.Summary   `json:"summary"`
	}{ledger.Views(owned, on), repayments, summary.Summarize(owned, on)})
}

type repaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	RepaymentDate string          `json:"repayment_date"`
	Notes         string          `json:"notes"`
	Account       string          `json:"account"`
}

func (s *Server) addRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	debt, ok := s.ownedDebt(w, r)
	if !ok {
		return
	}
	var req repaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := ledger.RepaymentInput{Amount: req.Amount, Notes: req.Notes}
	date, err := parseOptionalDate("repayment_date", req.RepaymentDate)
	if err != nil {
		writeError(w, err)
		return
	}
	if date != nil {
		in.RepaymentDate = *date
	}
	if req.Account != "" {
		account, err := s.storage.ResolveAccount(r.Context(), debt.UserID, req.Account)
		if errors.Is(err, store.ErrNotFound) {
			err = models.Invalid(models.KindUnknownAccountReference, "account %q not found", req.Account)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		in.AccountID = &account.ID
	}

	updated, err := s.ledger.AddRepayment(r.Context(), debt.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledger.View(updated, time.Now()))
}

func (s *Server) deleteRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "repayment")
	if !ok {
		return
	}
	rep, err := s.storage.GetRepayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	debt, err := s.ledger.GetDebt(r.Context(), rep.DebtID)
	if err == nil && debt.UserID != userID(r) {
		err = fmt.Errorf("repayment %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.ledger.DeleteRepayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.View(updated, time.Now()))
}

// batchResponse trims the error list of a batch to a preview for display.
type batchResponse struct {
	*models.ImportBatchResult
	ErrorPreview []models.RowError `json:"error_preview"`
	MoreErrors   int               `json:"more_errors"`
	Message      string            `json:"message"`
}

func newBatchResponse(label string, b *models.ImportBatchResult) *batchResponse {
	if b == nil {
		return nil
	}
	shown, more := b.Preview(errorPreview)
	msg := fmt.Sprintf("%s: %d imported, %d skipped", label, b.ImportedCount, b.SkippedCount)
	if more > 0 {
		msg += fmt.Sprintf(" (+%d more errors)", more)
	}
	return &batchResponse{ImportBatchResult: b, ErrorPreview: shown, MoreErrors: more, Message: msg}
}

// openPart returns the uploaded file under name, or nil when it was not sent.
func openPart(r *http.Request, name string) (multipart.File, error) {
	f, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return f, err
}

// importHandler accepts a multipart form with optional "debts" and "repayments" CSV files.
func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	debtsFile, err := openPart(r, "debts")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	repaymentsFile, err := openPart(r, "repayments")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if debtsFile == nil && repaymentsFile == nil {
		http.Error(w, "Expected a debts or repayments file", http.StatusBadRequest)
		return
	}

	var debtsCSV, repaymentsCSV io.Reader
	if debtsFile != nil {
		defer debtsFile.Close()
		debtsCSV = debtsFile
	}
	if repaymentsFile != nil {
		defer repaymentsFile.Close()
		repaymentsCSV = repaymentsFile
	}

	res, err := s.ledger.Import(r.Context(), userID(r), debtsCSV, repaymentsCSV)
	if err != nil && res == nil {
		if errors.Is(err, ledger.ErrImportInProgress) {
			writeError(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := struct {
		Debts      *batchResponse `json:"debts,omitempty"`
		Repayments *batchResponse `json:"repayments,omitempty"`
		Error      string         `json:"error,omitempty"`
	}{
		Debts:      newBatchResponse("debts", res.Debts),
		Repayments: newBatchResponse("repayments", res.Repayments),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) exportDebtsHandler(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "debts.csv", importer.ExportDebts)
}

func (s *Server) exportRepaymentsHandler(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "repayments.csv", importer.ExportRepayments)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, name string, write func(io.Writer, []*models.Debt) error) {
	debts, err := s.ledger.ListDebts(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := write(w, debts); err != nil {
		slog.Error("export failed", "file", name, "error", err)
	}
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	on, err := asOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debts, err := s.ledger.ListDebts(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.summary.Summarize(userID(r), debts, on))
}

func (s *Server) sectionsHandler(w http.ResponseWriter, r *http.Request) {
	on, err := asOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debts, err := s.ledger.ListDebts(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	sections := summary.Sections(debts, on)
	if sections == nil {
		sections = []summary.Section{}
	}
	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.storage.ListAccounts(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string          `json:"name"`
		BankName string          `json:"bank_name"`
		Balance  decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Account name is required", http.StatusBadRequest)
		return
	}
	if req.Balance.IsNegative() {
		http.Error(w, "Balance must not be negative", http.StatusBadRequest)
		return
	}

	now := time.Now()
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    userID(r),
		Name:      strings.TrimSpace(req.Name),
		BankName:  req.BankName,
		Balance:   req.Balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateAccount(r.Context(), account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}
