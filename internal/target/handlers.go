package target

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxDelay = 30 * time.Second

func handleFast(w http.ResponseWriter, r *http.Request) {
	jitter := time.Duration(rand.IntN(40)+10) * time.Millisecond //nolint:gosec // jitter, not security
	if !sleep(r, jitter) {
		return
	}
	WriteResponse(w, http.StatusOK, map[string]any{"delay_ms": jitter.Milliseconds()})
}

func handleSlow(w http.ResponseWriter, r *http.Request) {
	jitter := time.Duration(rand.IntN(1000)+1000) * time.Millisecond //nolint:gosec // jitter, not security
	if !sleep(r, jitter) {
		return
	}
	WriteResponse(w, http.StatusOK, map[string]any{"delay_ms": jitter.Milliseconds()})
}

func handleAsyncLight(w http.ResponseWriter, r *http.Request) {
	if !sleep(r, 100*time.Millisecond) {
		return
	}
	WriteResponse(w, http.StatusOK, map[string]any{
		"status":   "completed",
		"delay_ms": 100,
	})
}

func handleHeavy(w http.ResponseWriter, _ *http.Request) {
	var result float64
	for i := 1; i < 100; i++ {
		result += factorial(i % 20)
	}
	for i := 1; i < 10000; i++ {
		result += math.Log(float64(i + 1))
		result += math.Sqrt(float64(i))
	}
	for i := 1; i < 5000; i++ {
		result += math.Sin(float64(i)) * math.Cos(float64(i))
	}

	WriteResponse(w, http.StatusOK, map[string]any{
		"status":             "completed",
		"computation_result": math.Round(result*100) / 100,
	})
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

type item struct {
	Id          int      `json:"id"`
	Name        string   `json:"name"`
	Value       float64  `json:"value"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func handleJSONLarge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := queryInt(query.Get("page"), 1)
	limit := queryInt(query.Get("limit"), 1000)
	limit = min(max(limit, 1), 1000)
	page = max(page, 1)

	items := make([]item, 0, limit)
	offset := (page - 1) * limit
	for i := offset; i < offset+limit; i++ {
		items = append(items, item{
			Id:          i,
			Name:        fmt.Sprintf("Item %d", i),
			Value:       float64(i) * math.Pi,
			Description: fmt.Sprintf("Description for item number %d with some additional text", i),
			Tags:        []string{"tag0", "tag1", "tag2", "tag3", "tag4"},
		})
	}

	WriteResponse(w, http.StatusOK, map[string]any{
		"status": "success",
		"page":   page,
		"count":  len(items),
		"items":  items,
	})
}

func handleRandomError(w http.ResponseWriter, _ *http.Request) {
	switch n := rand.Float64(); { //nolint:gosec // failure injection, not security
	case n < 0.2:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	case n < 0.4:
		WriteError(w, http.StatusTooManyRequests, "too many requests")
	default:
		WriteResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(chi.URLParam(r, "ms"))
	if err != nil || ms < 0 {
		WriteError(w, http.StatusBadRequest, "invalid delay", err)
		return
	}
	delay := min(time.Duration(ms)*time.Millisecond, maxDelay)
	if !sleep(r, delay) {
		return
	}
	WriteResponse(w, http.StatusOK, map[string]any{"delay_ms": delay.Milliseconds()})
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 200 || code > 599 {
		WriteError(w, http.StatusBadRequest, "invalid status code", err)
		return
	}
	WriteResponse(w, code, map[string]any{"status": code})
}

// sleep waits for d unless the client goes away first.
func sleep(r *http.Request, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
