package httpadapter

import (
	"net/http"
	"strings"
)

func (rt *Router) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := rt.deps.Keys.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (rt *Router) createKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := rt.deps.Keys.Create(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordKeyAction("create")
	writeJSON(w, http.StatusCreated, created)
}

func (rt *Router) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := rt.deps.Keys.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordKeyAction("delete")
	w.WriteHeader(http.StatusNoContent)
}

// keyAction answers with the value the list should show for the key:
// plaintext while revealed, the mask otherwise.
func (rt *Router) keyAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := r.PathValue("action")

	var err error
	switch action {
	case "reveal":
		err = rt.deps.Keys.Reveal(id)
	case "hide":
		err = rt.deps.Keys.Hide(id)
	case "toggle":
		err = rt.deps.Keys.Toggle(id)
	case "copy":
		value, copyErr := rt.deps.Keys.Copy(id)
		if copyErr != nil {
			writeError(w, r, copyErr)
			return
		}
		rt.recordKeyAction(action)
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "value": value, "copied": true})
		return
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	display, err := rt.deps.Keys.Display(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordKeyAction(action)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "value": display})
}

func (rt *Router) recordKeyAction(action string) {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordKeyAction(action)
	}
}
