package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// resourceView is the JSON form of a resource.
type resourceView struct {
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Operations string     `json:"operations"`
	Observable bool       `json:"observable"`
	Delayed    bool       `json:"delayed,omitempty"`
	Value      any        `json:"value,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func viewOf(res *resource.Resource) resourceView {
	v := resourceView{
		Path:       res.Path().String(),
		Name:       res.Name(),
		Type:       res.Type().String(),
		Operations: res.Operations().String(),
		Observable: res.Observable(),
		Delayed:    res.Delayed(),
	}
	// Execute-only resources have no value to show.
	if res.Allows(resource.OpGet) || res.Allows(resource.OpPut) {
		v.Value = res.Value()
	}
	if at := res.UpdatedAt(); !at.IsZero() {
		v.UpdatedAt = &at
	}
	return v
}

func (s *Server) handleListResources(w http.ResponseWriter, _ *http.Request) {
	list := s.registry.List()
	views := make([]resourceView, 0, len(list))
	for _, res := range list {
		views = append(views, viewOf(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resources": views,
		"count":     len(views),
	})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Join([]string{
		chi.URLParam(r, "object"),
		chi.URLParam(r, "instance"),
		chi.URLParam(r, "resource"),
	}, "/")

	res, err := s.registry.Lookup(path)
	switch {
	case errors.Is(err, resource.ErrInvalidPath):
		writeBadRequest(w, "invalid resource path "+path)
		return
	case errors.Is(err, resource.ErrNotFound):
		writeNotFound(w, "no resource at "+path)
		return
	case err != nil:
		writeInternalError(w, "resource lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(res))
}
