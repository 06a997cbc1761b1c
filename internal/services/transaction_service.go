package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coinvault/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const completedQueue = "completed_transactions"

type TransactionService struct {
	db         *sql.DB
	redis      *redis.Client
	directory  *UserDirectory
	settlement *SettlementService
	validator  *ValidationHelper
}

func NewTransactionService(db *sql.DB, redisClient *redis.Client) *TransactionService {
	return &TransactionService{
		db:         db,
		redis:      redisClient,
		directory:  NewUserDirectory(db),
		settlement: NewSettlementService(),
		validator:  NewValidationHelper(),
	}
}

// CreateTransactionRequest is the create payload for both self-service and
// admin callers. Only admins may supply a non-pending status.
type CreateTransactionRequest struct {
	Type           models.TransactionType   `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount         string                   `json:"amount" validate:"required"`
	Currency       models.Currency          `json:"currency" validate:"required,oneof=USD BTC"`
	Method         string                   `json:"method" validate:"omitempty,oneof=walletBTCAddress wireTransfer zelleTransfer paypalAddress"`
	Note           string                   `json:"note" validate:"omitempty,max=500"`
	Date           *time.Time               `json:"date"`
	Reference      string                   `json:"transactionId" validate:"omitempty,max=100"`
	Status         models.TransactionStatus `json:"status" validate:"omitempty,oneof=pending completed failed canceled"`
	PaymentDetails map[string]any           `json:"paymentDetails"`
}

// UpdateStatusRequest carries a status transition.
type UpdateStatusRequest struct {
	Status models.TransactionStatus `json:"status" validate:"required,oneof=pending completed failed canceled"`
}

// AdminUpdateRequest is the administrative field override. Applying it
// bypasses balance recomputation entirely; it exists for manual
// reconciliation, not for the normal lifecycle.
type AdminUpdateRequest struct {
	Type      *models.TransactionType   `json:"type" validate:"omitempty,oneof=deposit withdrawal"`
	Amount    *string                   `json:"amount"`
	Balance   *string                   `json:"balance"`
	Currency  *models.Currency          `json:"currency" validate:"omitempty,oneof=USD BTC"`
	Method    *string                   `json:"method" validate:"omitempty,oneof=walletBTCAddress wireTransfer zelleTransfer paypalAddress"`
	Note      *string                   `json:"note" validate:"omitempty,max=500"`
	Date      *time.Time                `json:"date"`
	Reference *string                   `json:"transactionId" validate:"omitempty,max=100"`
	Status    *models.TransactionStatus `json:"status" validate:"omitempty,oneof=pending completed failed canceled"`
}

// TransactionFilters is the conjunctive filter set for operator listings.
type TransactionFilters struct {
	UserID string
	Status models.TransactionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// CreateTransaction handles self-service transaction creation
// @Summary Create a transaction
// @Description Create a deposit or withdrawal for the authenticated user
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param transaction body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /transactions [post]
func (ts *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	req, ok := ts.decodeCreateRequest(w, r)
	if !ok {
		return
	}

	// Self-service callers cannot pre-set a lifecycle status.
	if req.Status != "" && req.Status != models.StatusPending {
		SendErrorResponse(w, "Status cannot be set on self-service transactions", http.StatusBadRequest, nil)
		return
	}

	transaction, err := ts.create(userID, req, false)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transaction)
}

// CreateAdminTransaction handles admin-created transactions for a target user
// @Summary Create a transaction for a user (admin)
// @Description Create a transaction on behalf of a user; a completed status applies the balance immediately
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Target user ID"
// @Param transaction body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/admin/{userId} [post]
func (ts *TransactionService) CreateAdminTransaction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		SendErrorResponse(w, "userId is required", http.StatusBadRequest, nil)
		return
	}

	req, ok := ts.decodeCreateRequest(w, r)
	if !ok {
		return
	}

	transaction, err := ts.create(userID, req, true)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transaction)
}

// UpdateTransactionStatus handles lifecycle transitions
// @Summary Update transaction status (admin)
// @Description Transition a pending transaction; completing it applies the balance
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{id}/status [patch]
func (ts *TransactionService) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transaction, err := ts.updateStatus(id, req.Status)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// OverrideTransaction handles the admin field override
// @Summary Override transaction fields (admin)
// @Description Direct field overwrite; never recomputes balances, even when status changes
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param fields body AdminUpdateRequest true "Fields to overwrite"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{id} [patch]
func (ts *TransactionService) OverrideTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AdminUpdateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transaction, err := ts.overrideByAdmin(id, &req)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// ListTransactions retrieves transactions with optional filters
// @Summary List transactions (admin)
// @Description Filtered, paginated, newest-first listing over the ledger
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param userId query string false "Filter by user ID"
// @Param status query string false "Filter by status"
// @Param from query string false "Creation date lower bound (RFC 3339)"
// @Param to query string false "Creation date upper bound (RFC 3339)"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 400 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	transactions, err := ts.fetchWithFilters(filters)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to fetch transactions: %v", err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetMyTransactions retrieves the caller's own transactions
// @Summary Get own transactions
// @Description All transactions of the authenticated user, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transaction
// @Failure 401 {object} ErrorResponse
// @Router /transactions/my [get]
func (ts *TransactionService) GetMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	transactions, err := ts.fetchByUser(userID)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to fetch transactions for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID (admin)
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{id} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transaction, err := ts.fetchByID(chi.URLParam(r, "id"))
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// GetAccountBalance returns the caller's balances
// @Summary Get own balances
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=string,balanceBTC=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance [get]
func (ts *TransactionService) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := ts.directory.GetUser(userID)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"balance":    user.Balance.String(),
		"balanceBTC": user.BalanceBTC.String(),
	})
}

// Core lifecycle operations

// create validates the request, suppresses duplicate submissions and
// persists the transaction. The user row stays locked for the duration, so
// the duplicate check, the funds check and the optional balance write see a
// consistent balance and commit as one unit.
func (ts *TransactionService) create(userID string, req *CreateTransactionRequest, createdByAdmin bool) (*models.Transaction, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed amount", models.ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = models.StatusPending
	}

	dbTx, err := ts.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	user, err := ts.directory.lockUser(dbTx, userID)
	if err != nil {
		return nil, err
	}

	// Duplicate suppression: an identical pending submission returns the
	// existing record instead of creating a second one.
	existing, err := ts.findDuplicate(dbTx, userID, req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("[TRANSACTION] Duplicate submission for user %s, returning %s", userID, existing.ID)
		existing.User = user.Profile()
		return existing, nil
	}

	// The prospective balance validates funds for withdrawals even when the
	// transaction stays pending and nothing is applied yet.
	updatedBalance, err := ApplyTransaction(user.BalanceFor(req.Currency), amount, req.Type)
	if err != nil {
		return nil, err
	}

	applied := createdByAdmin && status == models.StatusCompleted

	transaction := &models.Transaction{
		ID:             uuid.New().String(),
		UserID:         userID,
		Type:           req.Type,
		Amount:         amount,
		Currency:       req.Currency,
		Status:         status,
		CreatedByAdmin: createdByAdmin,
		Method:         req.Method,
		Note:           req.Note,
		Date:           req.Date,
		Reference:      req.Reference,
		PaymentDetails: req.PaymentDetails,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if applied {
		transaction.Balance = &updatedBalance
	}

	if err := ts.insertTransaction(dbTx, transaction); err != nil {
		return nil, err
	}

	if applied {
		if err := ts.directory.setBalance(dbTx, userID, req.Currency, updatedBalance, user.Version); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	if applied {
		ts.afterCompletion(transaction)
	}

	transaction.User = user.Profile()
	return transaction, nil
}

// updateStatus performs a lifecycle transition. Completing a pending
// transaction is the only path, besides admin-completed creation, that
// mutates the user's balance; the recomputation, the balance write and the
// snapshot update commit atomically.
func (ts *TransactionService) updateStatus(id string, newStatus models.TransactionStatus) (*models.Transaction, error) {
	dbTx, err := ts.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	transaction, err := ts.lockTransaction(dbTx, id)
	if err != nil {
		return nil, err
	}

	if transaction.Status == newStatus {
		// Re-transition to the current status is a no-op; in particular a
		// second completion must not apply the balance delta again.
		return ts.attachUser(transaction)
	}

	if transaction.Status.Terminal() {
		return nil, models.ErrInvalidStatusTransition
	}

	if newStatus == models.StatusCompleted {
		user, err := ts.directory.lockUser(dbTx, transaction.UserID)
		if err != nil {
			return nil, err
		}

		updatedBalance, err := ApplyTransaction(user.BalanceFor(transaction.Currency), transaction.Amount, transaction.Type)
		if err != nil {
			return nil, err
		}

		if err := ts.directory.setBalance(dbTx, transaction.UserID, transaction.Currency, updatedBalance, user.Version); err != nil {
			return nil, err
		}

		_, err = dbTx.Exec(`
			UPDATE transactions SET status = $1, balance = $2, updated_at = $3 WHERE id = $4`,
			newStatus, updatedBalance.String(), time.Now(), id)
		if err != nil {
			return nil, err
		}

		transaction.Balance = &updatedBalance
	} else {
		_, err = dbTx.Exec(`
			UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`,
			newStatus, time.Now(), id)
		if err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	transaction.Status = newStatus
	transaction.UpdatedAt = time.Now()

	if newStatus == models.StatusCompleted {
		ts.afterCompletion(transaction)
	}

	return ts.attachUser(transaction)
}

// overrideByAdmin overwrites the supplied subset of fields verbatim. It
// deliberately skips balance recomputation even when status flips to
// completed; wiring it into the normal lifecycle would reintroduce balance
// skew, which is why it is a separate operation with a separate name.
func (ts *TransactionService) overrideByAdmin(id string, req *AdminUpdateRequest) (*models.Transaction, error) {
	var sets []string
	var args []any
	argIndex := 1

	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if req.Type != nil {
		appendSet("type", *req.Type)
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed amount", models.ErrInvalidInput)
		}
		appendSet("amount", amount.String())
	}
	if req.Balance != nil {
		balance, err := decimal.NewFromString(*req.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed balance", models.ErrInvalidInput)
		}
		appendSet("balance", balance.String())
	}
	if req.Currency != nil {
		appendSet("currency", *req.Currency)
	}
	if req.Method != nil {
		appendSet("method", *req.Method)
	}
	if req.Note != nil {
		appendSet("note", *req.Note)
	}
	if req.Date != nil {
		appendSet("date", *req.Date)
	}
	if req.Reference != nil {
		appendSet("reference", *req.Reference)
	}
	if req.Status != nil {
		appendSet("status", *req.Status)
	}

	if len(sets) > 0 {
		appendSet("updated_at", time.Now())

		query := fmt.Sprintf("UPDATE transactions SET %s WHERE id = $%d", strings.Join(sets, ", "), argIndex)
		args = append(args, id)

		result, err := ts.db.Exec(query, args...)
		if err != nil {
			return nil, err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rowsAffected == 0 {
			return nil, models.ErrTransactionNotFound
		}

		log.Printf("[TRANSACTION] Admin override applied to %s (%d fields)", id, len(sets)-1)
	}

	return ts.fetchByID(id)
}

// Query/filter layer

const transactionColumns = `id, user_id, type, amount::text, balance::text, currency, status, created_by_admin, COALESCE(method, ''), COALESCE(note, ''), date, COALESCE(reference, ''), payment_details, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var amountStr string
	var balanceStr sql.NullString
	var date sql.NullTime
	var paymentDetails []byte

	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &amountStr, &balanceStr, &t.Currency,
		&t.Status, &t.CreatedByAdmin, &t.Method, &t.Note, &date,
		&t.Reference, &paymentDetails, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("invalid stored amount for transaction %s: %w", t.ID, err)
	}
	if balanceStr.Valid {
		balance, err := decimal.NewFromString(balanceStr.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored balance for transaction %s: %w", t.ID, err)
		}
		t.Balance = &balance
	}
	if date.Valid {
		t.Date = &date.Time
	}
	if len(paymentDetails) > 0 {
		if err := json.Unmarshal(paymentDetails, &t.PaymentDetails); err != nil {
			return nil, fmt.Errorf("invalid payment details for transaction %s: %w", t.ID, err)
		}
	}

	return &t, nil
}

func (ts *TransactionService) fetchByID(id string) (*models.Transaction, error) {
	transaction, err := scanTransaction(ts.db.QueryRow(`
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTransactionNotFound
		}
		return nil, err
	}

	return ts.attachUser(transaction)
}

func (ts *TransactionService) lockTransaction(dbTx *sql.Tx, id string) (*models.Transaction, error) {
	transaction, err := scanTransaction(dbTx.QueryRow(`
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTransactionNotFound
		}
		return nil, err
	}
	return transaction, nil
}

func (ts *TransactionService) fetchByUser(userID string) ([]*models.Transaction, error) {
	rows, err := ts.db.Query(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (ts *TransactionService) fetchWithFilters(f *TransactionFilters) ([]*models.Transaction, error) {
	var conditions []string
	var args []any
	argIndex := 1

	if f.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, f.UserID)
		argIndex++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, f.Status)
		argIndex++
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *f.From)
		argIndex++
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *f.To)
		argIndex++
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := ts.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	transactions := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// findDuplicate looks for a pending transaction of the same user with
// identical type, amount, currency, method and note.
func (ts *TransactionService) findDuplicate(dbTx *sql.Tx, userID string, req *CreateTransactionRequest) (*models.Transaction, error) {
	transaction, err := scanTransaction(dbTx.QueryRow(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND status = $2 AND type = $3 AND amount = $4
		  AND currency = $5 AND COALESCE(method, '') = $6 AND COALESCE(note, '') = $7
		LIMIT 1`,
		userID, models.StatusPending, req.Type, req.Amount, req.Currency, req.Method, req.Note))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return transaction, nil
}

func (ts *TransactionService) insertTransaction(dbTx *sql.Tx, t *models.Transaction) error {
	var balance any
	if t.Balance != nil {
		balance = t.Balance.String()
	}
	var paymentDetails any
	if len(t.PaymentDetails) > 0 {
		data, err := json.Marshal(t.PaymentDetails)
		if err != nil {
			return err
		}
		paymentDetails = data
	}

	_, err := dbTx.Exec(`
		INSERT INTO transactions
		(id, user_id, type, amount, balance, currency, status, created_by_admin, method, note, date, reference, payment_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.UserID, t.Type, t.Amount.String(), balance, t.Currency, t.Status,
		t.CreatedByAdmin, nullIfEmpty(t.Method), nullIfEmpty(t.Note), t.Date,
		nullIfEmpty(t.Reference), paymentDetails, t.CreatedAt, t.UpdatedAt)
	return err
}

func (ts *TransactionService) attachUser(t *models.Transaction) (*models.Transaction, error) {
	profile, err := ts.directory.getProfile(t.UserID)
	if err != nil {
		// The transaction itself is intact; a missing profile only degrades
		// the display payload.
		log.Printf("[TRANSACTION] Failed to attach user %s: %v", t.UserID, err)
		return t, nil
	}
	t.User = profile
	return t, nil
}

// afterCompletion runs the post-commit side effects of a completed
// transaction: the Redis handoff for downstream notification, and the
// settlement export for wire-transfer withdrawals. Failures are logged,
// never propagated; the ledger and balance are already committed.
func (ts *TransactionService) afterCompletion(t *models.Transaction) {
	if ts.redis != nil {
		data, err := json.Marshal(t)
		if err == nil {
			err = ts.redis.RPush(context.Background(), completedQueue, data).Err()
		}
		if err != nil {
			log.Printf("[TRANSACTION] Failed to queue completed transaction %s: %v", t.ID, err)
		}
	}

	if t.Type == models.TypeWithdrawal && t.Currency == models.CurrencyUSD && t.Method == "wireTransfer" {
		if err := ts.settlement.ExportWithdrawal(t); err != nil {
			log.Printf("[TRANSACTION] Settlement export failed for %s: %v", t.ID, err)
		}
	}
}

// Request plumbing

func (ts *TransactionService) decodeCreateRequest(w http.ResponseWriter, r *http.Request) (*CreateTransactionRequest, bool) {
	var req CreateTransactionRequest
	if !decodeJSONBody(w, r, &req) {
		return nil, false
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func parseFilters(r *http.Request) (*TransactionFilters, error) {
	filters := &TransactionFilters{
		UserID: r.URL.Query().Get("userId"),
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}

	if filters.Status != "" && filters.Status != models.StatusPending && !filters.Status.Terminal() {
		return nil, fmt.Errorf("invalid status filter %q", filters.Status)
	}

	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, fmt.Errorf("invalid from date: %v", err)
		}
		filters.From = &parsed
	}
	if to := r.URL.Query().Get("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, fmt.Errorf("invalid to date: %v", err)
		}
		filters.To = &parsed
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 200 {
			return nil, fmt.Errorf("limit must be between 1 and 200")
		}
		filters.Limit = limit
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("offset must be non-negative")
		}
		filters.Offset = offset
	}

	return filters, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
