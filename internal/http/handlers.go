package http

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// overviewRecent bounds the transaction list returned with the overview.
const overviewRecent = 50

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	in, ok := s.readTransaction(w, r)
	if !ok {
		return
	}
	tx, err := s.ledger.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(newTransactionResponse(tx)).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, core.Validation(err))
		return
	}
	txs, err := s.ledger.List(r.Context(), owner, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Transactions: newTransactionList(txs), Count: len(txs)})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	tx, err := s.ledger.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	in, ok := s.readTransaction(w, r)
	if !ok {
		return
	}
	tx, err := s.ledger.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	if err := s.ledger.Delete(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, core.Validation(err))
		return
	}
	sum, err := s.ledger.Summary(r.Context(), owner, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(sum))
}

// handleOverview serves the dashboard in one round trip: the filtered summary
// and the newest transactions, loaded concurrently.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, owner core.Owner) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, core.Validation(err))
		return
	}
	listFilters := f
	if listFilters.Limit == 0 {
		listFilters.Limit = overviewRecent
	}

	var (
		sum core.Summary
		txs []core.Transaction
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		sum, err = s.ledger.Summary(ctx, owner, f)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.ledger.List(ctx, owner, listFilters)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		Summary:      newSummaryResponse(sum),
		Transactions: newTransactionList(txs),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, _ core.Owner) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": core.SuggestedCategories})
}

// readTransaction decodes and validates a transaction body. On failure the
// response has already been written.
func (s *Server) readTransaction(w http.ResponseWriter, r *http.Request) (core.TransactionInput, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{Error: "content type must be application/json"})
		return core.TransactionInput{}, false
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return core.TransactionInput{}, false
	}
	if err := s.validate.ValidateStruct(req); err != nil {
		writeValidationError(w, err)
		return core.TransactionInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		writeValidationError(w, err)
		return core.TransactionInput{}, false
	}
	return in, true
}
