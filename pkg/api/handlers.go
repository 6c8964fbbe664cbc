package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autommensor/wabot/pkg/logger"
	"github.com/autommensor/wabot/pkg/respond"
	"github.com/autommensor/wabot/pkg/store"
)

// --- Templates ---

type templateRequest struct {
	Name     string `json:"name"`
	Body     string `json:"message"`
	MediaURL string `json:"media_url,omitempty"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.Templates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if templates == nil {
		templates = []store.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "name and message are required")
		return
	}
	t, err := s.store.CreateTemplate(r.Context(), req.Name, req.Body, req.MediaURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := s.store.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), req.Name, req.Body, req.MediaURL)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteTemplate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Business knowledge ---

func (s *Server) handleGetTraining(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.BusinessContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"aboutUs":      info.About,
		"products":     info.Products,
		"faq":          info.FAQ,
		"refundPolicy": info.RefundPolicy,
		"contact":      info.Contact,
	})
}

func (s *Server) handleSaveTraining(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AboutUs      string `json:"aboutUs"`
		Products     string `json:"products"`
		FAQ          string `json:"faq"`
		RefundPolicy string `json:"refundPolicy"`
		Contact      string `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.store.SaveBusinessContext(r.Context(), respond.BusinessInfo{
		About:        req.AboutUs,
		Products:     req.Products,
		FAQ:          req.FAQ,
		RefundPolicy: req.RefundPolicy,
		Contact:      req.Contact,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Contacts ---

func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("csv")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	contacts, err := store.ParseContactsCSV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]interface{}{
		"success":  true,
		"count":    len(contacts),
		"contacts": contacts,
	}

	// Optionally persist the list for scheduled campaigns.
	if name := r.FormValue("name"); name != "" {
		list, err := s.store.SaveContactList(r.Context(), name, contacts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["list_id"] = list.ID
		logger.InfoCF("api", "Contact list saved", map[string]interface{}{
			"name": name, "count": len(contacts),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListContactLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.ContactLists(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lists == nil {
		lists = []store.ContactList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleGetContactList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ContactList(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "contact list not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- Schedules ---

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.List())
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expr          string `json:"expr"`
		TemplateID    string `json:"template_id"`
		ContactListID string `json:"contact_list_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := s.store.Template(r.Context(), req.TemplateID); err != nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if _, err := s.store.ContactList(r.Context(), req.ContactListID); err != nil {
		writeError(w, http.StatusNotFound, "contact list not found")
		return
	}
	job, err := s.scheduler.Add(req.Expr, req.TemplateID, req.ContactListID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if !s.scheduler.Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
