package http

import (
	"net/http"

	"classquiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type nameRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	Password string `json:"password"`
}

type cleanupResponse struct {
	Attempted []string `json:"attempted"`
	Failed    []string `json:"failed"`
}

// member loads the caller's membership of the classroom in the URL. A caller
// outside the classroom gets a 404.
func (h *Handler) member(w http.ResponseWriter, r *http.Request) (domain.Member, bool) {
	m, err := h.svc.Classrooms.GetMember(r.Context(), chi.URLParam(r, "cid"), callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return domain.Member{}, false
	}
	return m, true
}

// creator is member plus a 403 for callers who did not create the classroom.
func (h *Handler) creator(w http.ResponseWriter, r *http.Request) bool {
	m, ok := h.member(w, r)
	if !ok {
		return false
	}
	if !m.IsCreator {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only the classroom creator can do this"})
		return false
	}
	return true
}

func (h *Handler) changeName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Profiles.PropagateNameChange(r.Context(), callerID(r), req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Users.GetUser(r.Context(), callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) listMemberships(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.svc.Classrooms.ListMemberships(r.Context(), callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberships)
}

func (h *Handler) createClassroom(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Classrooms.CreateClassroom(r.Context(), callerID(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) joinClassroom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Classrooms.JoinClassroom(r.Context(), callerID(r), req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c.Password = ""
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) getClassroom(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Classrooms.GetClassroom(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !m.IsCreator {
		c.Password = ""
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) renameClassroom(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := h.svc.Classrooms.UpdateClassroomName(r.Context(), chi.URLParam(r, "cid"), callerID(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nameRequest{Name: name})
}

func (h *Handler) deleteClassroom(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	if err := h.svc.Classrooms.DeleteClassroom(r.Context(), chi.URLParam(r, "cid")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) regeneratePassword(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	password, err := h.svc.Classrooms.RegeneratePassword(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRequest{Password: password})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.member(w, r); !ok {
		return
	}
	members, err := h.svc.Classrooms.ListMembers(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// removeMember lets the creator remove anyone but themselves, and a member
// leave on their own.
func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(w, r)
	if !ok {
		return
	}
	target := chi.URLParam(r, "uid")
	if !m.IsCreator && target != m.UserID {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only the classroom creator can remove other members"})
		return
	}
	cleanup, err := h.svc.Classrooms.RemoveMember(r.Context(), chi.URLParam(r, "cid"), target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := cleanupResponse{Attempted: cleanup.Attempted, Failed: []string{}}
	for _, f := range cleanup.Failed {
		resp.Failed = append(resp.Failed, f.Path)
	}
	writeJSON(w, http.StatusOK, resp)
}
