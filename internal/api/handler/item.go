package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/catalog"
)

// ItemHandler serves localized item details
type ItemHandler struct {
	catalog *catalog.Service
}

// NewItemHandler creates a new item handler
func NewItemHandler(catalog *catalog.Service) *ItemHandler {
	return &ItemHandler{catalog: catalog}
}

// Get handles GET /api/v1/items/{id}?lang=
// An explicit lang wins over the Accept-Language header.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept-Language")
	if lang := r.URL.Query().Get("lang"); lang != "" {
		matched, err := h.catalog.ParseLanguage(lang)
		if err != nil {
			WriteError(w, err)
			return
		}
		accept = matched
	}

	display, err := h.catalog.Display(model.ItemID(mux.Vars(r)["id"]), accept)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Language", display.Language)
	response.JSON(w, http.StatusOK, response.ItemFromModel(display))
}
