package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

func newTestRouter(repo Repository, companyID int64) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if companyID > 0 {
				ctx = shared.ContextWithCompany(ctx, companyID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/api/audit-logs", h.MountRoutes)
	return r
}

func TestHandlerTimelineFilters(t *testing.T) {
	repo := &stubRepo{rows: rows(2)}
	router := newTestRouter(repo, 7)

	req := httptest.NewRequest(http.MethodGet, "/api/audit-logs?entity=invoice&entity_id=1&action=UPDATE&actor_id=3&from=2024-03-01&to=2024-03-31&page_size=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, int64(7), repo.lastFilter.CompanyID)
	require.Equal(t, "invoice", repo.lastFilter.Entity)
	require.Equal(t, "1", repo.lastFilter.EntityID)
	require.Equal(t, "UPDATE", repo.lastFilter.Action)
	require.Equal(t, int64(3), repo.lastFilter.ActorID)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)

	var body struct {
		Data   []TimelineRow `json:"data"`
		Paging PagingInfo    `json:"paging"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.True(t, body.Paging.HasNext)
	require.Equal(t, 2, body.Paging.NextPage)
}

func TestHandlerTimelineErrors(t *testing.T) {
	cases := []struct {
		name    string
		company int64
		query   string
		status  int
	}{
		{"missing company", 0, "", http.StatusBadRequest},
		{"bad from", 1, "?from=yesterday", http.StatusUnprocessableEntity},
		{"bad page", 1, "?page=0", http.StatusUnprocessableEntity},
		{"bad actor", 1, "?actor_id=x", http.StatusUnprocessableEntity},
		{"inverted range", 1, "?from=2024-03-10&to=2024-03-01", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(&stubRepo{}, tc.company).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit-logs"+tc.query, nil))
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
