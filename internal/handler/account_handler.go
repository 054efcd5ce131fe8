package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type CreateAccountRequest struct {
	CustomerID  string `json:"customer_id"`
	AccountType string `json:"account_type"`
}

type IbanRequest struct {
	IBAN string `json:"iban"`
}

type DepositRequest struct {
	IBAN   string `json:"iban"`
	Amount string `json:"amount"`
}

type DepositResponse struct {
	Message string                        `json:"message"`
	Record  *domain.TransferHistoryRecord `json:"record,omitempty"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	account, err := h.accountService.CreateAccount(req.CustomerID, domain.AccountType(req.AccountType))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")

	var accountTypes []domain.AccountType
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, t := range strings.Split(typesParam, ",") {
			accountTypes = append(accountTypes, domain.AccountType(strings.TrimSpace(t)))
		}
	}

	accounts, err := h.accountService.ListAccountsByType(customerID, accountTypes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	iban := r.URL.Query().Get("iban")
	accountNumber := r.URL.Query().Get("account_number")

	balance, err := h.accountService.GetBalance(iban, accountNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance.String()})
}

func (h *AccountHandler) LockAccount(w http.ResponseWriter, r *http.Request) {
	h.toggleLock(w, r, h.accountService.LockAccount)
}

func (h *AccountHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	h.toggleLock(w, r, h.accountService.UnlockAccount)
}

func (h *AccountHandler) toggleLock(w http.ResponseWriter, r *http.Request, toggle func(string) (*domain.Account, error)) {
	var req IbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	account, err := toggle(req.IBAN)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	result, err := h.accountService.Deposit(req.IBAN, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Record == nil {
		// Queued for replay, not applied yet.
		status = http.StatusAccepted
	}
	writeJSON(w, status, DepositResponse{Message: result.Message, Record: result.Record})
}
