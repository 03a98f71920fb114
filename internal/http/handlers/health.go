package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// Health only reports that the process is serving. Database and queue
// failures surface on the endpoints that use them.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
}
