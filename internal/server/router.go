package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/sidecar/internal/dialog"
	"github.com/loykin/sidecar/internal/files"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/supervisor"
)

// StatusProvider reports the supervisor's current state.
type StatusProvider interface {
	Status() supervisor.Status
}

// Router provides the shell's command surface over loopback HTTP.
// Endpoints:
//
//	POST {basePath}/commands/select_files?preset=audio
//	POST {basePath}/commands/select_folder
//	POST {basePath}/commands/save_file                  body: {"default_name": "..."}
//	POST {basePath}/commands/write_file                 body: {"file_path": "...", "content": "..."}
//	POST {basePath}/commands/generate_unique_folder_name body: {"base_path": "...", "folder_name": "..."}
//	GET  {basePath}/supervisor/status
//	GET  {basePath}/healthz
//	GET  {basePath}/metrics (when enabled)
//
// A cancelled dialog answers 200 {"cancelled": true}.
type Router struct {
	dialogs  dialog.Service
	files    *files.Service
	status   StatusProvider
	basePath string
	metrics  bool
}

// Options wires the Router's collaborators. Nil Dialogs and Status disable their routes.
type Options struct {
	Dialogs  dialog.Service
	Files    *files.Service
	Status   StatusProvider
	BasePath string
	Metrics  bool
}

func NewRouter(opts Options) *Router {
	fs := opts.Files
	if fs == nil {
		fs = files.New(nil)
	}
	return &Router{
		dialogs:  opts.Dialogs,
		files:    fs,
		status:   opts.Status,
		basePath: sanitizeBase(opts.BasePath),
		metrics:  opts.Metrics,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	cmds := group.Group("/commands")
	cmds.POST("/select_files", r.handleSelectFiles)
	cmds.POST("/select_folder", r.handleSelectFolder)
	cmds.POST("/save_file", r.handleSaveFile)
	cmds.POST("/write_file", r.handleWriteFile)
	cmds.POST("/generate_unique_folder_name", r.handleUniqueFolderName)
	group.GET("/supervisor/status", r.handleStatus)
	group.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, okResp{OK: true}) })
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer binds addr and serves the router in the background. Bind errors are returned.
func NewServer(addr string, r *Router) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// dialogs block until the user answers
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("command API stopped", "error", err)
		}
	}()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type cancelledResp struct {
	Cancelled bool `json:"cancelled"`
}

type pathsResp struct {
	Paths []string `json:"paths"`
}

type pathResp struct {
	Path string `json:"path"`
}

type nameResp struct {
	Name string `json:"name"`
}

type saveReq struct {
	DefaultName string `json:"default_name"`
}

type writeReq struct {
	FilePath string  `json:"file_path"`
	Content  *string `json:"content"`
}

type uniqueReq struct {
	BasePath   string `json:"base_path"`
	FolderName string `json:"folder_name"`
}

func (r *Router) handleSelectFiles(c *gin.Context) {
	if !r.requireDialogs(c) {
		return
	}
	filters, ok := dialog.Preset(c.Query("preset"))
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown preset: " + c.Query("preset")})
		return
	}
	paths, err := r.dialogs.PickFiles(c.Request.Context(), filters)
	if r.dialogError(c, err) {
		return
	}
	writeJSON(c, http.StatusOK, pathsResp{Paths: paths})
}

func (r *Router) handleSelectFolder(c *gin.Context) {
	if !r.requireDialogs(c) {
		return
	}
	p, err := r.dialogs.PickFolder(c.Request.Context())
	if r.dialogError(c, err) {
		return
	}
	writeJSON(c, http.StatusOK, pathResp{Path: p})
}

func (r *Router) handleSaveFile(c *gin.Context) {
	if !r.requireDialogs(c) {
		return
	}
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.DefaultName != "" && !isPlainName(req.DefaultName) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid default_name: must be a file name without path separators"})
		return
	}
	p, err := r.dialogs.SaveFile(c.Request.Context(), req.DefaultName, dialog.SaveFilters(req.DefaultName))
	if r.dialogError(c, err) {
		return
	}
	writeJSON(c, http.StatusOK, pathResp{Path: p})
}

func (r *Router) handleWriteFile(c *gin.Context) {
	var req writeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.FilePath == "" || req.Content == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "file_path and content required"})
		return
	}
	if !isSafeAbsPath(req.FilePath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid file_path: must be absolute path without traversal"})
		return
	}
	if err := r.files.WriteFile(req.FilePath, []byte(*req.Content)); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "failed to write file: " + err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleUniqueFolderName(c *gin.Context) {
	var req uniqueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeAbsPath(req.BasePath) || req.BasePath == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid base_path: must be absolute path without traversal"})
		return
	}
	if !isPlainName(req.FolderName) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid folder_name: must be a single path element"})
		return
	}
	name, err := r.files.UniqueFolderName(filepath.Clean(req.BasePath), req.FolderName)
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	case err != nil:
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, nameResp{Name: name})
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.status == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "supervisor not running"})
		return
	}
	writeJSON(c, http.StatusOK, r.status.Status())
}

func (r *Router) requireDialogs(c *gin.Context) bool {
	if r.dialogs == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: dialog.ErrUnavailable.Error()})
		return false
	}
	return true
}

// dialogError writes the response for a failed dialog and reports whether it did.
func (r *Router) dialogError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, dialog.ErrCancelled):
		writeJSON(c, http.StatusOK, cancelledResp{Cancelled: true})
	case errors.Is(err, dialog.ErrUnavailable):
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		writeJSON(c, http.StatusRequestTimeout, errorResp{Error: err.Error()})
	default:
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
	}
	return true
}
