package jobs

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
)

// QueueInspector is the subset of *asynq.Inspector the health endpoint reads.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueHealth summarises one queue.
type QueueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

// Handler exposes queue health over HTTP.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs the jobs handler. A nil inspector reports empty queues.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(Queues()))
	for name := range Queues() {
		names = append(names, name)
	}
	sort.Strings(names)

	known := map[string]bool{}
	if h.inspector != nil {
		existing, err := h.inspector.Queues()
		if err != nil {
			h.unavailable(w, "", err)
			return
		}
		for _, name := range existing {
			known[name] = true
		}
	}

	out := make([]QueueHealth, 0, len(names))
	for _, name := range names {
		qh := QueueHealth{Queue: name}
		// queues appear in redis only after their first task
		if known[name] {
			info, err := h.inspector.GetQueueInfo(name)
			if err != nil {
				h.unavailable(w, name, err)
				return
			}
			qh.Pending, qh.Active, qh.Retry, qh.Archived = info.Pending, info.Active, info.Retry, info.Archived
			qh.Paused, qh.Processed, qh.Failed = info.Paused, info.Processed, info.Failed
		}
		out = append(out, qh)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queues": out})
}

func (h *Handler) unavailable(w http.ResponseWriter, queue string, err error) {
	h.logger.Warn("jobs health", slog.String("queue", queue), slog.Any("error", err))
	httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "queue backend unreachable")
}
