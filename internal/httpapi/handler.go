package httpapi

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path"
	"strings"

	"pybake/internal/archive"
	"pybake/internal/logging"
	"pybake/internal/orchestrator"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Runner is the orchestrator as seen by the HTTP layer.
type Runner interface {
	Run(ctx context.Context, files []orchestrator.UploadedFile, mode orchestrator.Mode) (*orchestrator.Result, error)
}

type Config struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
}

type Handler struct {
	run Runner
	cfg Config
	mux *http.ServeMux
}

func New(run Runner, cfg Config) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".py"}
	}
	h := &Handler{run: run, cfg: cfg, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("POST /transform", h.transform)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Accept string
		Modes  []orchestrator.Mode
	}{strings.Join(h.cfg.AllowedExtensions, ","), orchestrator.Modes}
	if err := tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		logging.L().Error("render index", "err", err)
	}
}

/*──────── POST /transform ───────*/

type request struct {
	files    []orchestrator.UploadedFile
	mode     orchestrator.Mode
	zip      bool
	wantJSON bool
}

func (h *Handler) transform(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(w, r)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.run.Run(r.Context(), req.files, req.mode)
	switch {
	case res == nil && errors.Is(err, orchestrator.ErrInvalidInput):
		h.fail(w, r, http.StatusBadRequest, err)
		return
	case res == nil:
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("X-Request-Id", res.RequestID)
	w.Header().Set("X-Pybake-Status", orchestrator.Outcome(res, err))

	status := http.StatusOK
	if len(res.Artifacts) == 0 {
		status = http.StatusUnprocessableEntity
	}

	switch {
	case req.wantJSON:
		writeJSON(w, status, newResultJSON(res, err))
	case req.zip && len(res.Artifacts) > 0 && err == nil:
		h.writeZip(w, res)
	default:
		// a partial archive goes on the result page next to the tool errors
		h.writeHTML(w, status, res, err, req.zip)
	}
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (*request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	req := &request{
		zip:      r.FormValue("delivery") == "zip",
		wantJSON: wantsJSON(r),
		mode:     orchestrator.Obfuscate,
	}
	if m := r.FormValue("mode"); m != "" {
		mode, err := orchestrator.ParseMode(m)
		if err != nil {
			return nil, err
		}
		req.mode = mode
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", orchestrator.ErrInvalidInput)
	}
	for _, fh := range headers {
		// some browsers send the client-side path
		name := path.Base(strings.ReplaceAll(fh.Filename, `\`, "/"))
		if !h.allowed(name) {
			return nil, fmt.Errorf("%w: %q: only %s files are accepted", orchestrator.ErrInvalidInput, name, strings.Join(h.cfg.AllowedExtensions, ", "))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		req.files = append(req.files, orchestrator.UploadedFile{Name: name, Data: data})
	}
	return req, nil
}

func (h *Handler) allowed(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, a := range h.cfg.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

/*──────── responses ───────*/

func zipName(mode orchestrator.Mode) string {
	return "pybake-" + strings.ReplaceAll(string(mode), "+", "-") + ".zip"
}

func zipArtifacts(arts []orchestrator.Artifact) ([]byte, error) {
	entries := make([]archive.Entry, len(arts))
	for i, a := range arts {
		entries[i] = archive.Entry{Name: a.Name, Data: a.Data}
	}
	return archive.Zip(entries)
}

func (h *Handler) writeZip(w http.ResponseWriter, res *orchestrator.Result) {
	raw, err := zipArtifacts(res.Artifacts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", archive.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", zipName(res.Mode)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

type artifactView struct {
	Name     string // path relative to the output dir
	Download string // browsers drop directories from download names
	Size     int
	Stage    orchestrator.Stage
	Href     template.URL
}

func dataURI(mimeType string, data []byte) template.URL {
	return template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// writeHTML renders the result page. The archive link is added when the
// caller asked for a ZIP or when some artifacts live in subdirectories.
func (h *Handler) writeHTML(w http.ResponseWriter, status int, res *orchestrator.Result, runErr error, wantZip bool) {
	view := struct {
		RequestID string
		Mode      orchestrator.Mode
		Status    string
		Error     string
		Nested    bool
		Archive   *artifactView
		Artifacts []artifactView
	}{
		RequestID: res.RequestID,
		Mode:      res.Mode,
		Status:    orchestrator.Outcome(res, runErr),
	}
	if runErr != nil {
		view.Error = runErr.Error()
	}
	for _, a := range res.Artifacts {
		if strings.Contains(a.Name, "/") {
			view.Nested = true
		}
		view.Artifacts = append(view.Artifacts, artifactView{
			Name:     a.Name,
			Download: path.Base(a.Name),
			Size:     len(a.Data),
			Stage:    a.Stage,
			Href:     dataURI(a.MIMEType, a.Data),
		})
	}
	if len(res.Artifacts) > 0 && (wantZip || view.Nested) {
		raw, err := zipArtifacts(res.Artifacts)
		if err != nil {
			logging.L().Error("build archive", "request_id", res.RequestID, "err", err)
		} else {
			name := zipName(res.Mode)
			view.Archive = &artifactView{Name: name, Download: name, Size: len(raw), Href: dataURI(archive.MIMEType, raw)}
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "result.html", view); err != nil {
		logging.L().Error("render result", "request_id", res.RequestID, "err", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.L().Warn("transform rejected", "status", status, "err", err)
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, err.Error(), status)
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") || r.URL.Query().Get("format") == "json" {
		return true
	}
	if r.MultipartForm != nil {
		if v := r.MultipartForm.Value["format"]; len(v) > 0 {
			return v[0] == "json"
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L().Error("encode response", "err", err)
	}
}
