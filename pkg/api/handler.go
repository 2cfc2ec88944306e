// Package api serves call and value diagrams over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/callflow/pkg/diagram"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/processor"
	"github.com/ethpandaops/callflow/pkg/value"
)

const (
	maxBulkTransactions = 100

	contentTypeMarkup = "text/plain; charset=utf-8"
)

// Renderer writes diagrams of transactions.
type Renderer interface {
	WriteCalls(ctx context.Context, w io.Writer, hashes []common.Hash) (*diagram.Result, error)
	WriteValues(ctx context.Context, w io.Writer, hashes []common.Hash) (*value.Balances, error)
}

// Compile-time check that the processor can serve diagrams.
var _ Renderer = (*processor.Processor)(nil)

type Handler struct {
	log      logrus.FieldLogger
	renderer Renderer
}

func NewHandler(log logrus.FieldLogger, renderer Renderer) *Handler {
	return &Handler{
		log:      log.WithField("component", "api"),
		renderer: renderer,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/diagram/{mode}/{tx_hash}", h.singleDiagram)
	mux.HandleFunc("POST /api/v1/diagram/{mode}", h.bulkDiagram)
}

type TransactionResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BulkDiagramRequest struct {
	Transactions []string `json:"transactions"`
}

type BulkDiagramResponse struct {
	Status  string `json:"status"`
	Mode    string `json:"mode"`
	Summary struct {
		Total    int `json:"total"`
		Rendered int `json:"rendered"`
		Skipped  int `json:"skipped"`
	} `json:"summary"`
	Results  []TransactionResult `json:"results"`
	Warnings []string            `json:"warnings,omitempty"`
	Diagram  string              `json:"diagram,omitempty"`
}

type ErrorResponse struct {
	Error           string `json:"error"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Mode            string `json:"mode,omitempty"`
}

func (h *Handler) singleDiagram(w http.ResponseWriter, r *http.Request) {
	mode := r.PathValue("mode")
	hashStr := r.PathValue("tx_hash")

	if !isValidMode(mode) {
		h.writeError(w, http.StatusNotFound, "unknown diagram mode", "", mode)

		return
	}

	hash, err := processor.ParseHash(hashStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transaction hash format", hashStr, mode)

		return
	}

	var buf bytes.Buffer

	_, err = h.render(r.Context(), mode, &buf, []common.Hash{hash})
	if err != nil {
		switch {
		case errors.Is(err, execution.ErrTransactionNotFound), errors.Is(err, execution.ErrTraceNotFound):
			h.writeError(w, http.StatusNotFound, "transaction not found", hash.Hex(), mode)
		case errors.Is(err, processor.ErrNothingToRender):
			h.writeError(w, http.StatusBadGateway, err.Error(), hash.Hex(), mode)
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error(), hash.Hex(), mode)
		}

		return
	}

	w.Header().Set("Content-Type", contentTypeMarkup)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.WithError(err).Error("failed to write diagram")
	}
}

func (h *Handler) bulkDiagram(w http.ResponseWriter, r *http.Request) {
	mode := r.PathValue("mode")

	if !isValidMode(mode) {
		h.writeError(w, http.StatusNotFound, "unknown diagram mode", "", mode)

		return
	}

	var req BulkDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "", mode)

		return
	}

	if len(req.Transactions) == 0 {
		h.writeError(w, http.StatusBadRequest, "no transactions provided", "", mode)

		return
	}

	if len(req.Transactions) > maxBulkTransactions {
		h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("too many transactions (limit: %d)", maxBulkTransactions), "", mode)

		return
	}

	hashes, err := processor.ParseHashes(req.Transactions)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "", mode)

		return
	}

	var buf bytes.Buffer

	warnings, err := h.render(r.Context(), mode, &buf, hashes)
	failed := processor.FailedTransactions(err)

	response := BulkDiagramResponse{
		Mode:     mode,
		Results:  make([]TransactionResult, 0, len(hashes)),
		Warnings: warnings,
		Diagram:  buf.String(),
	}

	response.Summary.Total = len(hashes)

	for _, hash := range hashes {
		if txErr, ok := failed[hash]; ok {
			response.Results = append(response.Results, TransactionResult{
				Hash:   hash.Hex(),
				Status: "skipped",
				Error:  txErr.Error(),
			})
			response.Summary.Skipped++

			continue
		}

		response.Results = append(response.Results, TransactionResult{
			Hash:   hash.Hex(),
			Status: "rendered",
		})
		response.Summary.Rendered++
	}

	switch {
	case err != nil && len(failed) == 0:
		h.writeError(w, http.StatusInternalServerError, err.Error(), "", mode)
	case response.Summary.Skipped > 0 && response.Summary.Rendered > 0:
		response.Status = "partial"
		h.writeJSON(w, http.StatusMultiStatus, response)
	case response.Summary.Skipped > 0:
		response.Status = "failed"
		response.Diagram = ""
		h.writeJSON(w, http.StatusBadGateway, response)
	default:
		response.Status = "rendered"
		h.writeJSON(w, http.StatusOK, response)
	}
}

// render writes the diagram for mode and returns the renderer's warnings.
func (h *Handler) render(ctx context.Context, mode string, w io.Writer, hashes []common.Hash) ([]string, error) {
	if mode == processor.ModeValue {
		_, err := h.renderer.WriteValues(ctx, w, hashes)

		return nil, err
	}

	res, err := h.renderer.WriteCalls(ctx, w, hashes)
	if res == nil {
		return nil, err
	}

	return res.Warnings, err
}

func isValidMode(mode string) bool {
	return mode == processor.ModeCall || mode == processor.ModeValue
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, hash, mode string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:           message,
		TransactionHash: hash,
		Mode:            mode,
	})
}
