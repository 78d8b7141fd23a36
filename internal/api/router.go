package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("POST /v1/cadences/start", h.StartCadence)
	mux.HandleFunc("POST /v1/cadences/stop", h.StopCadence)

	mux.HandleFunc("POST /v1/tick", h.RunTick)
	mux.HandleFunc("POST /v1/reminders/schedule", h.ScheduleReminders)
	mux.HandleFunc("POST /v1/deadletters/replay", h.ReplayDeadLetter)

	mux.HandleFunc("GET /v1/messages/sent", h.ListSentMessages)
	mux.HandleFunc("GET /v1/ratelimit", h.RateLimitStatus)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("cadence-engine"))
	})

	return mux
}
