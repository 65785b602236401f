package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
	"github.com/bunchhieng/gdaes/internal/transfer"
)

const maxBodyBytes = 8 << 20

// API serves the list store. Every store call runs under one mutex so
// concurrent requests never interleave mutations.
type API struct {
	mu    sync.Mutex
	store *lists.Store

	log     logger.Logger
	version string
	started time.Time
	now     func() time.Time
}

func NewAPI(store *lists.Store, log logger.Logger, version string) *API {
	return &API{
		store:   store,
		log:     log,
		version: version,
		started: time.Now(),
		now:     time.Now,
	}
}

type commitResponse struct {
	Outcome   string `json:"outcome"`
	Revision  string `json:"revision,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func toCommitResponse(c storage.Commit) commitResponse {
	resp := commitResponse{Outcome: c.Outcome.String(), Revision: c.Revision}
	if !c.Timestamp.IsZero() {
		resp.Timestamp = model.FormatTimestamp(c.Timestamp)
	}
	return resp
}

type collectionResponse struct {
	model.Collection
	Source string `json:"source"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type dropRequest struct {
	Payload json.RawMessage `json:"payload"`
	Target  string          `json:"target"`
	Index   *int            `json:"index,omitempty"`
}

type dropResponse struct {
	Applied      bool           `json:"applied"`
	ReleaseTabID int            `json:"releaseTabId,omitempty"`
	Commit       commitResponse `json:"commit"`
}

type openResponse struct {
	Valid   []model.Link `json:"valid"`
	Skipped []model.Link `json:"skipped"`
}

type searchHit struct {
	List  string `json:"list"`
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type backupResponse struct {
	Key       int64  `json:"key"`
	Timestamp string `json:"timestamp"`
	Lists     int    `json:"lists"`
	Links     int    `json:"links"`
}

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Source        string  `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrListNotFound), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrInvalidPayload),
		errors.Is(err, model.ErrInvalidURL),
		errors.Is(err, model.ErrIndexOutOfRange),
		errors.Is(err, model.ErrFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrFormat, err)
	}
	return nil
}

// pathParam returns a decoded route parameter. chi matches on the raw path
// when the request contains escaped separators.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	source := a.store.Source().String()
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(a.started).Seconds(),
		Version:       a.version,
		Source:        source,
	})
}

func (a *API) getCollection(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	resp := collectionResponse{Collection: a.store.Snapshot(), Source: a.store.Source().String()}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) createList(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	a.mu.Lock()
	commit, err := a.store.CreateList(r.Context(), req.Name)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommitResponse(commit))
}

func (a *API) renameList(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	a.mu.Lock()
	commit, err := a.store.RenameList(r.Context(), pathParam(r, "name"), req.Name)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}

func (a *API) deleteList(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	commit := a.store.DeleteList(r.Context(), pathParam(r, "name"))
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}

func (a *API) addLink(w http.ResponseWriter, r *http.Request) {
	var link model.Link
	if err := decodeBody(r, &link); err != nil {
		a.writeError(w, err)
		return
	}

	a.mu.Lock()
	commit, err := a.store.AddLink(r.Context(), pathParam(r, "name"), link)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommitResponse(commit))
}

func (a *API) deleteLink(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %q", model.ErrIndexOutOfRange, chi.URLParam(r, "index")))
		return
	}

	a.mu.Lock()
	commit := a.store.DeleteLink(r.Context(), pathParam(r, "name"), index)
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}

func (a *API) openList(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	valid, skipped, err := a.store.OpenAllLinks(pathParam(r, "name"))
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if skipped == nil {
		skipped = []model.Link{}
	}
	writeJSON(w, http.StatusOK, openResponse{Valid: valid, Skipped: skipped})
}

func (a *API) drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	payload, err := model.DecodePayload(req.Payload)
	if err != nil {
		a.writeError(w, err)
		return
	}
	index := lists.End
	if req.Index != nil {
		index = *req.Index
	}

	a.mu.Lock()
	result, err := a.store.Drop(r.Context(), payload, req.Target, index)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dropResponse{
		Applied:      result.Applied,
		ReleaseTabID: result.ReleaseTabID,
		Commit:       toCommitResponse(result.Commit),
	})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	a.mu.Lock()
	hits := a.store.Search(query)
	a.mu.Unlock()

	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHit{List: h.List, Index: h.Index, URL: h.Link.URL, Title: h.Link.Title})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	now := a.now()

	a.mu.Lock()
	doc := a.store.Export(now)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transfer.FileName(now)))
	if err := doc.Encode(w); err != nil {
		a.log.Warn("export write failed", logger.Error(err))
	}
}

func (a *API) importDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", model.ErrFormat, err))
		return
	}

	a.mu.Lock()
	commit, err := a.store.Import(r.Context(), raw)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}

func (a *API) listBackups(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	backups, err := a.store.Backups(r.Context())
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]backupResponse, 0, len(backups))
	for _, b := range backups {
		out = append(out, backupResponse{
			Key:       b.Key,
			Timestamp: model.FormatTimestamp(b.Timestamp),
			Lists:     len(b.Data.Order),
			Links:     b.Data.LinkCount(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) restoreBackup(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: backup %q", model.ErrNotFound, chi.URLParam(r, "key")))
		return
	}

	a.mu.Lock()
	commit, err := a.store.RestoreBackup(r.Context(), key)
	a.mu.Unlock()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}
