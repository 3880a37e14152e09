package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListCatalogItems(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]itemJSON, len(items))
	for i, item := range items {
		out[i] = newItemJSON(item)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var body itemBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	in := admin.ItemInput{ID: body.ID}
	if body.Name != nil {
		in.Name = *body.Name
	}
	if body.Description != nil {
		in.Description = *body.Description
	}
	if body.ImageRef != nil {
		in.ImageRef = *body.ImageRef
	}
	if body.UnitPrice == nil {
		s.respondError(w, r, common.NewValidationError("unit_price", "missing"))
		return
	}
	in.UnitPrice = *body.UnitPrice

	item, err := s.admin.AddItem(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newItemJSON(*item))
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var body itemBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	item, err := s.admin.UpdateItem(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"], admin.ItemPatch{
		Name:        body.Name,
		Description: body.Description,
		UnitPrice:   body.UnitPrice,
		ImageRef:    body.ImageRef,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newItemJSON(*item))
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteItem(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r, "list accounts") {
		return
	}

	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]accountJSON, len(accounts))
	for i, a := range accounts {
		out[i] = newAccountJSON(a)
	}
	respondJSON(w, http.StatusOK, out)
}

func parseAccountPatch(body accountBody) (admin.AccountPatch, error) {
	patch := admin.AccountPatch{DisplayName: body.DisplayName}
	if body.Class != nil {
		class, err := model.ParseAccountClass(*body.Class)
		if err != nil {
			return patch, common.NewValidationError("account_class", err.Error())
		}
		patch.Class = &class
	}
	if body.Access != nil {
		access, err := model.ParseAccessClass(*body.Access)
		if err != nil {
			return patch, common.NewValidationError("access_class", err.Error())
		}
		patch.Access = &access
	}
	return patch, nil
}

func (s *Server) addAccount(w http.ResponseWriter, r *http.Request) {
	var body accountBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	patch, err := parseAccountPatch(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	in := admin.AccountInput{ID: body.ID, Credential: body.Credential}
	if patch.DisplayName != nil {
		in.DisplayName = *patch.DisplayName
	}
	if patch.Class != nil {
		in.Class = *patch.Class
	}
	if patch.Access != nil {
		in.Access = *patch.Access
	}

	account, err := s.admin.AddAccount(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newAccountJSON(*account))
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	var body accountBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	patch, err := parseAccountPatch(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	account, err := s.admin.UpdateAccount(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"], patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newAccountJSON(*account))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteAccount(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetCredential(w http.ResponseWriter, r *http.Request) {
	temp, err := s.admin.ResetCredential(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"temporary_credential": temp})
}

func (s *Server) changeCredential(w http.ResponseWriter, r *http.Request) {
	var body credentialBody
	if err := decodeJSON(r, &body); err != nil {
		respondKind(w, kindBadRequest, err.Error())
		return
	}

	err := s.admin.ChangeCredential(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"], body.Current, body.Next)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
