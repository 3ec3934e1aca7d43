package broadcaster

import (
	"encoding/json"
	"net/http"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
)

// StatsProvider lets the service orchestrator attach component stats
// (phase detector, god-candle detector, history collector) onto the
// broadcaster's /stats route without this package depending on them.
type StatsProvider func() any

// RegisterRoutes wires GET /feed/{channel}, GET /health, and GET /stats
// onto mux.
//
// Routes:
//
//	GET /feed/{channel} -> subscribe (game|stats|trades|history|all)
//	GET /health         -> component health snapshot
//	GET /stats          -> full counter snapshot
func (b *Broadcaster) RegisterRoutes(mux *http.ServeMux, extraStats StatsProvider) {
	mux.HandleFunc("GET /feed/{channel}", func(w http.ResponseWriter, r *http.Request) {
		channel := model.Channel(r.PathValue("channel"))
		b.HandleWS(channel)(w, r)
	})
	mux.HandleFunc("GET /health", b.healthCheck)
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if extraStats != nil {
			json.NewEncoder(w).Encode(extraStats())
			return
		}
		json.NewEncoder(w).Encode(b.GetStats())
	})
}

func (b *Broadcaster) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status      string                `json:"status"`
		ClientCount map[model.Channel]int `json:"client_count"`
	}{
		Status:      "ok",
		ClientCount: b.ClientCount(),
	})
}
