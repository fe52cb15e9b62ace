package handlers

import (
	"fmt"
	"html"
	"net/http"
)

// SettingsPage serves GET /settings: forms for the persisted host-set
// override and the public_network toggle. It does not list accounts or
// provider types.
func (h *Handlers) SettingsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostSet, err := h.Settings.HostSet(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	public, err := h.Settings.PublicNetwork(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	checked := ""
	if public {
		checked = " checked"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body><h1>settings</h1>
<form method="post" action="/settings/host-set">
  <label>bind host:port <input name="host_port" value=%q></label>
  <button type="submit">save</button>
</form>
<form method="post" action="/settings/public-network">
  <label><input type="checkbox" name="public_network"%s> expose on public network</label>
  <button type="submit">save</button>
</form>
</body></html>`, html.EscapeString(hostSet), checked)
}

// SetHostSet serves POST /settings/host-set.
func (h *Handlers) SetHostSet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Settings.SetHostSet(r.Context(), r.FormValue("host_port")); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusFound)
}

// SetPublicNetwork serves POST /settings/public-network.
func (h *Handlers) SetPublicNetwork(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, err)
		return
	}
	on := r.FormValue("public_network") != ""
	if err := h.Settings.SetPublicNetwork(r.Context(), on); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusFound)
}
