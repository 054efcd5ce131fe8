package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/errors"
	"banking-ledger/internal/service"
)

type TransactionHandler struct {
	transferService *service.TransferService
}

func NewTransactionHandler(transferService *service.TransferService) *TransactionHandler {
	return &TransactionHandler{
		transferService: transferService,
	}
}

type TransferRequest struct {
	SenderIBAN   string `json:"sender_iban"`
	ReceiverIBAN string `json:"receiver_iban"`
	Amount       string `json:"amount"`
}

type TransferResponse struct {
	Outcome string      `json:"outcome"`
	Message string      `json:"message,omitempty"`
	Record  interface{} `json:"record,omitempty"`
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	result, err := h.transferService.MakeTransfer(req.SenderIBAN, req.ReceiverIBAN, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := TransferResponse{Outcome: string(result.Outcome)}
	switch result.Outcome {
	case service.TransferQueued:
		response.Message = "current transfer is pending due to processing on one of the accounts"
		writeJSON(w, http.StatusAccepted, response)
	case service.TransferRejected:
		response.Record = result.Record
		writeJSON(w, http.StatusOK, response)
	default:
		response.Record = result.Record
		writeJSON(w, http.StatusCreated, response)
	}
}

func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	iban := r.URL.Query().Get("iban")

	records, err := h.transferService.History(iban)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}
