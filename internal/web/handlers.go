package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-sync/internal/domain/model"
	"catalog-sync/internal/importer"
	"catalog-sync/internal/metrics"
	"catalog-sync/internal/store"
)

const maxUploadBytes = 32 << 20

// ImportService is the slice of the importer the handlers call.
type ImportService interface {
	Import(ctx context.Context, sourceFile string, r io.Reader) (*importer.Report, error)
	Preview(r io.Reader, limit int) ([]model.SnapshotRow, []importer.RowError, error)
}

// DrainService runs the queue drainer until empty.
type DrainService interface {
	Run(ctx context.Context) error
	Running() bool
}

type Server struct {
	importer  ImportService
	drainer   DrainService
	queue     store.QueueStore
	snapshots store.SnapshotStore
	syncLog   store.SyncLogStore
	jobs      *JobManager
	metrics   *metrics.Metrics
	uploadDir string
	logger    *zap.Logger
}

func NewServer(
	imp ImportService,
	drainer DrainService,
	queue store.QueueStore,
	snapshots store.SnapshotStore,
	syncLog store.SyncLogStore,
	jobs *JobManager,
	m *metrics.Metrics,
	uploadDir string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		importer:  imp,
		drainer:   drainer,
		queue:     queue,
		snapshots: snapshots,
		syncLog:   syncLog,
		jobs:      jobs,
		metrics:   m,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createImport accepts a multipart catalog upload, stores it under the
// upload directory and starts a background import job.
func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	stored, err := s.storeUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("upload store failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	sourceName := header.Filename
	job := s.jobs.Start("import", func(ctx context.Context, log func(string)) (any, error) {
		f, err := os.Open(stored)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		log(fmt.Sprintf("importing %s", sourceName))
		report, err := s.importer.Import(ctx, sourceName, f)
		if err != nil {
			return nil, err
		}
		log(fmt.Sprintf("snapshot %d: %d rows, %d price / %d stock queued, %d unmapped",
			report.SnapshotID, report.TotalRows, report.PriceQueued, report.StockQueued, len(report.Unmapped)))
		return report, nil
	})

	respondJSON(w, http.StatusAccepted, job)
}

// previewImport parses an upload without touching the database.
func (s *Server) previewImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	limit := queryInt(r, "limit", 20)
	rows, rejected, err := s.importer.Preview(file, limit)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"rows":     rows,
		"rejected": rejected,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.snapshots.ListSnapshots(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}
	snap, err := s.snapshots.GetSnapshot(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// diffSnapshot compares snapshot {id} against an older one given by the
// `against` query parameter.
func (s *Server) diffSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}
	against, err := strconv.ParseInt(r.URL.Query().Get("against"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "query parameter 'against' is required")
		return
	}

	currentRows, err := s.snapshots.SnapshotRows(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	oldRows, err := s.snapshots.SnapshotRows(r.Context(), against)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, importer.Diff(oldRows, currentRows))
}

func (s *Server) queueCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.Counts(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetQueueDepth(counts)
	}
	respondJSON(w, http.StatusOK, counts)
}

// triggerDrain starts a background drain job running until the queue is
// empty.
func (s *Server) triggerDrain(w http.ResponseWriter, _ *http.Request) {
	if s.drainer.Running() {
		respondError(w, http.StatusConflict, "a drain is already running")
		return
	}
	job := s.jobs.Start("drain", func(ctx context.Context, log func(string)) (any, error) {
		log("drain started")
		if err := s.drainer.Run(ctx); err != nil {
			return nil, err
		}
		log("queue drained")
		return map[string]string{"status": "drained"}, nil
	})
	respondJSON(w, http.StatusAccepted, job)
}

// requeueErrors flips the given error items back to pending.
func (s *Server) requeueErrors(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "body must carry a non-empty 'ids' array")
		return
	}
	if err := s.queue.Requeue(r.Context(), body.IDs); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requeued": body.IDs})
}

func (s *Server) syncHistory(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	entries, err := s.syncLog.History(r.Context(), reference, queryInt(r, "limit", 100))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) storeUpload(file io.Reader, original string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + "_" + filepath.Base(original)
	path := filepath.Join(s.uploadDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
