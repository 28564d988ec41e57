package server

import (
	"net/http"
)

func handleSnapshot(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := hub.Snapshot().Encode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encoding snapshot failed")
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
