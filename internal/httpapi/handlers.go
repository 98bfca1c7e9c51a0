package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smite-tools/draft-server/internal/registry"
	"github.com/smite-tools/draft-server/internal/room"
)

const viewTimeout = time.Second

type healthResponse struct {
	Status           string `json:"status"`
	RoomCount        int    `json:"roomCount"`
	ParticipantCount int    `json:"participantCount"`
	Timestamp        string `json:"timestamp"`
}

type roomInfoResponse struct {
	ID               string `json:"id"`
	Created          int64  `json:"created"` // unix milliseconds
	ParticipantCount int    `json:"participantCount"`
	HasMessages      bool   `json:"hasMessages"`
}

func Health(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []*room.Room, 1)
		reg.Inbox() <- registry.ListRooms{Reply: reply}
		rooms := <-reply

		participants := 0
		for _, rm := range rooms {
			if v, ok := rm.View(viewTimeout); ok {
				participants += v.Participants
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:           "ok",
			RoomCount:        len(rooms),
			ParticipantCount: participants,
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func RoomInfo(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "id"))

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
			return
		}

		v, ok := rm.View(viewTimeout)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
			return
		}

		writeJSON(w, http.StatusOK, roomInfoResponse{
			ID:               v.ID,
			Created:          v.Created.UnixMilli(),
			ParticipantCount: v.Participants,
			HasMessages:      v.HasMessages,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
