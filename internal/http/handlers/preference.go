package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/http/response"
	"github.com/yungbote/artforge-backend/internal/preference"
	"github.com/yungbote/artforge-backend/internal/selector"
)

type PreferenceReader interface {
	Snapshot(cat preference.Category) []preference.Entry
}

type PreferenceHandler struct {
	prefs PreferenceReader
}

func NewPreferenceHandler(prefs PreferenceReader) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

type categoryView struct {
	Best    string             `json:"best,omitempty"`
	Entries []preference.Entry `json:"entries"`
}

// GET /api/preferences
func (h *PreferenceHandler) List(c *gin.Context) {
	out := make(map[string]categoryView, len(types.Categories))
	for _, cat := range types.Categories {
		entries := h.prefs.Snapshot(cat)
		if entries == nil {
			entries = []preference.Entry{}
		}
		out[string(cat)] = categoryView{Best: selector.Best(entries), Entries: entries}
	}
	response.RespondOK(c, out)
}
