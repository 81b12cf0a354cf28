package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/water-balance-service/internal/domain"
	"github.com/couchcryptid/water-balance-service/internal/ingest"
	"github.com/couchcryptid/water-balance-service/internal/store"
	"github.com/couchcryptid/water-balance-service/internal/viewcache"
)

const (
	viewFlow             = "flow"
	viewZones            = "zones"
	viewLossDistribution = "loss-distribution"
	viewDCBreakdown      = "dc-breakdown"
	viewKPIs             = "kpis"
	viewEfficiency       = "efficiency"

	uploadFormField = "file"
)

// Snapshots returns the snapshot currently served.
type Snapshots interface {
	Current() (*store.Snapshot, bool)
}

// DatasetLoader installs an uploaded dataset as the served snapshot.
type DatasetLoader interface {
	Load(ctx context.Context, source string, r io.Reader) (*store.Snapshot, error)
}

// WaterAPI serves the dashboard views of the current snapshot and accepts
// dataset uploads.
type WaterAPI struct {
	snapshots      Snapshots
	loader         DatasetLoader
	cache          *viewcache.Cache
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewWaterAPI wires the API handlers. Views are memoized in cache.
func NewWaterAPI(snapshots Snapshots, loader DatasetLoader, cache *viewcache.Cache, maxUploadBytes int64, logger *slog.Logger) *WaterAPI {
	return &WaterAPI{
		snapshots:      snapshots,
		loader:         loader,
		cache:          cache,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type monthsResponse struct {
	Months []string `json:"months"`
	Latest string   `json:"latest"`
}

type reportResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	Source     string    `json:"source"`
	LoadedAt   time.Time `json:"loaded_at"`
	Valid      bool      `json:"valid"`
	Errors     []string  `json:"errors"`
}

type uploadResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Source     string   `json:"source"`
	Format     string   `json:"format"`
	Months     int      `json:"months"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
}

func (a *WaterAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/water/dataset", a.withSnapshot(a.handleDataset))
	mux.HandleFunc("GET /api/water/report", a.withSnapshot(a.handleReport))
	mux.HandleFunc("GET /api/water/months", a.withSnapshot(a.handleMonths))
	mux.HandleFunc("GET /api/water/flow", a.withSnapshot(monthView(a, viewFlow, domain.FlowDistribution)))
	mux.HandleFunc("GET /api/water/zones", a.withSnapshot(monthView(a, viewZones, domain.ZonePerformance)))
	mux.HandleFunc("GET /api/water/loss-distribution", a.withSnapshot(monthView(a, viewLossDistribution, domain.LossDistribution)))
	mux.HandleFunc("GET /api/water/dc-breakdown", a.withSnapshot(monthView(a, viewDCBreakdown, domain.DCBreakdown)))
	mux.HandleFunc("GET /api/water/kpis", a.withSnapshot(monthView(a, viewKPIs, domain.MonthlyKPIs)))
	mux.HandleFunc("GET /api/water/efficiency", a.withSnapshot(a.handleEfficiency))
	mux.HandleFunc("POST /api/water/upload", a.handleUpload)
}

type snapshotHandler func(w http.ResponseWriter, r *http.Request, snap *store.Snapshot)

// withSnapshot answers 503 until the first dataset has been loaded.
func (a *WaterAPI) withSnapshot(next snapshotHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := a.snapshots.Current()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no dataset loaded")
			return
		}
		next(w, r, snap)
	}
}

func (a *WaterAPI) handleDataset(w http.ResponseWriter, _ *http.Request, snap *store.Snapshot) {
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (a *WaterAPI) handleReport(w http.ResponseWriter, _ *http.Request, snap *store.Snapshot) {
	sharedobs.WriteJSON(w, http.StatusOK, reportResponse{
		SnapshotID: snap.ID,
		Source:     snap.Source,
		LoadedAt:   snap.LoadedAt,
		Valid:      snap.Report.Valid,
		Errors:     nonNil(snap.Report.Errors),
	})
}

func (a *WaterAPI) handleMonths(w http.ResponseWriter, _ *http.Request, snap *store.Snapshot) {
	sharedobs.WriteJSON(w, http.StatusOK, monthsResponse{
		Months: nonNil(domain.Months(snap.Dataset)),
		Latest: domain.LatestMonth(snap.Dataset),
	})
}

func (a *WaterAPI) handleEfficiency(w http.ResponseWriter, _ *http.Request, snap *store.Snapshot) {
	key := viewcache.Key{Snapshot: snap.ID, View: viewEfficiency}
	points, _ := viewcache.Lookup(a.cache, key, func() ([]domain.EfficiencyPoint, error) {
		return domain.EfficiencyTrend(snap.Dataset), nil
	})
	sharedobs.WriteJSON(w, http.StatusOK, points)
}

// monthView adapts a per-month domain view to a handler. The month query
// parameter defaults to the latest period.
func monthView[V any](a *WaterAPI, view string, fn func(domain.WaterDataset, string) (V, error)) snapshotHandler {
	return func(w http.ResponseWriter, r *http.Request, snap *store.Snapshot) {
		month := strings.TrimSpace(r.URL.Query().Get("month"))
		if month == "" {
			month = domain.LatestMonth(snap.Dataset)
		}

		key := viewcache.Key{Snapshot: snap.ID, View: view, Month: month}
		v, err := viewcache.Lookup(a.cache, key, func() (V, error) {
			return fn(snap.Dataset, month)
		})
		if errors.Is(err, domain.ErrMonthNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			a.logger.Error("view failed", "view", view, "month", month, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, v)
	}
}

// handleUpload accepts either a raw body named by the name query parameter or
// a multipart form with the file in the "file" field.
func (a *WaterAPI) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	name, body, err := uploadSource(r)
	if err != nil {
		a.writeUploadError(w, err)
		return
	}

	data, err := io.ReadAll(body)
	if err != nil {
		a.writeUploadError(w, err)
		return
	}

	snap, err := a.loader.Load(r.Context(), name, bytes.NewReader(data))
	if err != nil {
		a.writeUploadError(w, err)
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, uploadResponse{
		SnapshotID: snap.ID,
		Source:     snap.Source,
		Format:     snap.Format,
		Months:     len(snap.Dataset.Periods),
		Valid:      snap.Report.Valid,
		Errors:     nonNil(snap.Report.Errors),
	})
}

var errMissingName = errors.New("missing file name: pass ?name=<file> or a multipart \"file\" field")

func uploadSource(r *http.Request) (string, io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			return "", nil, errMissingName
		}
		return name, r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, &ingest.MalformedInputError{Err: err}
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errMissingName
		}
		if err != nil {
			return "", nil, err
		}
		if part.FormName() != uploadFormField {
			continue
		}
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			name = part.FileName()
		}
		if name == "" {
			return "", nil, errMissingName
		}
		return name, part, nil
	}
}

func (a *WaterAPI) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	var malformed *ingest.MalformedInputError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds limit")
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, errMissingName), errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
