package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

func forbidden(actor service.Actor, operation string) error {
	return &common.ForbiddenError{AccountID: actor.AccountID, Operation: operation}
}

// requireAdmin writes a 403 and reports false for non-admin actors.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, operation string) bool {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.respondError(w, r, forbidden(actor, operation))
		return false
	}
	return true
}

func pageParam(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// listRequests serves ?status=active (default) or ?status=pending. Admins see
// every account unless ?account= narrows it; users only see their own.
func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	q := r.URL.Query()

	accountID := actor.AccountID
	if actor.IsAdmin() {
		accountID = q.Get("account")
	} else if a := q.Get("account"); a != "" && a != actor.AccountID {
		s.respondError(w, r, forbidden(actor, "view another account's requests"))
		return
	}

	var (
		rows []query.RequestRow
		err  error
	)
	switch strings.ToLower(q.Get("status")) {
	case "", "active":
		if accountID == "" {
			rows, err = s.queries.ActiveAll(r.Context())
		} else {
			rows, err = s.queries.ActiveForAccount(r.Context(), accountID)
		}
	case "pending":
		if accountID == "" {
			rows, err = s.queries.PendingAll(r.Context())
		} else {
			rows, err = s.queries.PendingForAccount(r.Context(), accountID)
		}
	default:
		s.respondError(w, r, common.NewValidationError("status", "must be active or pending"))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items, current, pages := query.Paginate(rows, pageParam(r), query.DefaultPageSize)
	out := page[requestJSON]{
		Items: make([]requestJSON, len(items)),
		Page:  current,
		Pages: pages,
		Count: len(rows),
	}
	for i, row := range items {
		out.Items[i] = newRequestRowJSON(row)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var body enqueueBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	accountID := body.AccountID
	if accountID == "" {
		accountID = actor.AccountID
	}
	if accountID != actor.AccountID && !actor.IsAdmin() {
		s.respondError(w, r, forbidden(actor, "file requests for another account"))
		return
	}

	req, err := s.engine.Enqueue(r.Context(), body.CatalogItemID, body.Quantity, accountID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newRequestJSON(*req))
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	req, err := s.store.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.AccountID != actor.AccountID && !actor.IsAdmin() {
		s.respondError(w, r, forbidden(actor, "view another account's requests"))
		return
	}
	respondJSON(w, http.StatusOK, newRequestJSON(*req))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r, "advance requests") {
		return
	}

	var body advanceBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}
	target, err := model.ParseStatus(body.Status)
	if err != nil {
		s.respondError(w, r, common.NewValidationError("status", err.Error()))
		return
	}

	id := mux.Vars(r)["id"]
	req, err := s.engine.Advance(r.Context(), id, target)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondTransition(w, r, req)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r, "advance requests") {
		return
	}

	req, err := s.engine.Step(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondTransition(w, r, req)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r, "cancel requests") {
		return
	}

	req, err := s.engine.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"request": newRequestJSON(*req)})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r, "complete requests") {
		return
	}

	id := mux.Vars(r)["id"]
	record, err := s.engine.Complete(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	req, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request": newRequestJSON(*req),
		"record":  newRecordJSON(*record),
	})
}

// respondTransition includes the ledger record when the request just completed.
func (s *Server) respondTransition(w http.ResponseWriter, r *http.Request, req *model.QueueRequest) {
	out := map[string]any{"request": newRequestJSON(*req)}
	if req.Status == model.StatusCompleted {
		record, err := s.store.GetRecordByRequest(r.Context(), req.ID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out["record"] = newRecordJSON(*record)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	q := r.URL.Query()

	sortBy, err := query.ParseSortField(q.Get("sort"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	opts := query.HistoryOptions{
		Search:       q.Get("search"),
		AccountClass: model.AccountClass(strings.ToLower(q.Get("class"))),
		SortBy:       sortBy,
		Ascending:    strings.EqualFold(q.Get("order"), "asc"),
	}

	accountID := q.Get("account")
	if !actor.IsAdmin() {
		if accountID != "" && accountID != actor.AccountID {
			s.respondError(w, r, forbidden(actor, "view another account's history"))
			return
		}
		accountID = actor.AccountID
	}

	var rows []query.HistoryRow
	if accountID == "" {
		rows, err = s.queries.HistoryAll(r.Context(), opts)
	} else {
		rows, err = s.queries.HistoryForAccount(r.Context(), accountID, opts)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items, current, pages := query.Paginate(rows, pageParam(r), query.DefaultPageSize)
	out := historyPage{
		Total: query.TotalValue(rows),
		page: page[recordJSON]{
			Items: make([]recordJSON, len(items)),
			Page:  current,
			Pages: pages,
			Count: len(rows),
		},
	}
	for i, row := range items {
		out.Items[i] = newHistoryRowJSON(row)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	accountID := actor.AccountID
	if actor.IsAdmin() {
		accountID = r.URL.Query().Get("account")
	}

	sum, err := s.queries.Summary(r.Context(), accountID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSummaryJSON(sum))
}
