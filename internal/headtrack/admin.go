package headtrack

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/headtrack/internal/version"
)

// AttachAdminRoutes mounts the session's debug pages under /debug/ on mux.
func (s *Session) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("headtrack version", version.String())

	debug.Handle("headtrack", "Head tracking status (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.Status()); err != nil {
			http.Error(w, "Failed to encode status", http.StatusInternalServerError)
		}
	}))

	debug.HandleSilent("headtrack-recenter", s.commandHandler(CommandRecenter))
	debug.HandleSilent("headtrack-toggle", s.commandHandler(CommandToggle))
}

func (s *Session) commandHandler(c Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Submit(c)
		io.WriteString(w, fmt.Sprintf("Queued %s for the next frame", c))
	}
}
