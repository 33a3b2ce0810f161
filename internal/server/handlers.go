package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/matzehuels/vpsc/pkg/buildinfo"
	vpscerrors "github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/pipeline"
	"github.com/matzehuels/vpsc/pkg/problem"
	"github.com/matzehuels/vpsc/pkg/render"
)

var graphContentTypes = map[string]string{
	render.FormatSVG: "image/svg+xml",
	render.FormatPNG: "image/png",
	render.FormatDOT: "text/vnd.graphviz; charset=utf-8",
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

type batchRequest struct {
	Problems    []json.RawMessage `json:"problems"`
	Concurrency int               `json:"concurrency,omitempty"`
	Refresh     bool              `json:"refresh,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	p, err := readProblem(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SolveTimeout)
	defer cancel()

	res, err := s.runner.Solve(ctx, p, pipeline.Options{Refresh: queryBool(r, "refresh")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, vpscerrors.Wrap(vpscerrors.ErrCodeInvalidFormat, err, "decode batch request"))
		return
	}
	if len(req.Problems) == 0 {
		s.writeError(w, r, vpscerrors.New(vpscerrors.ErrCodeInvalidInput, "batch has no problems"))
		return
	}
	if len(req.Problems) > s.cfg.MaxBatch {
		s.writeError(w, r, vpscerrors.New(vpscerrors.ErrCodeInvalidInput, "batch has %d problems, limit is %d", len(req.Problems), s.cfg.MaxBatch))
		return
	}

	problems := make([]*problem.Problem, len(req.Problems))
	for i, raw := range req.Problems {
		p, err := problem.Read(bytes.NewReader(raw), problem.FormatJSON)
		if err != nil {
			s.writeError(w, r, vpscerrors.Wrap(vpscerrors.GetCode(err), err, "problems[%d]", i))
			return
		}
		problems[i] = p
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SolveTimeout)
	defer cancel()
	batch, err := s.runner.SolveBatch(ctx, problems, pipeline.Options{
		Concurrency: req.Concurrency,
		Refresh:     req.Refresh,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.DefaultGraphFormat
	}
	if err := render.ValidateFormat(format); err != nil {
		s.writeError(w, r, vpscerrors.Wrap(vpscerrors.ErrCodeInvalidFormat, err, "format"))
		return
	}
	p, err := readProblem(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SolveTimeout)
	defer cancel()

	opts := pipeline.Options{
		GraphFormat: format,
		Refresh:     queryBool(r, "refresh"),
		Graph:       render.DefaultOptions(),
	}
	opts.Graph.Detailed = queryBool(r, "detailed")
	out, err := s.runner.Graph(ctx, p, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", graphContentTypes[format])
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// readProblem decodes the body in the format named by Content-Type
// (JSON when absent).
func readProblem(r *http.Request) (*problem.Problem, error) {
	format := problem.FormatJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, vpscerrors.Wrap(vpscerrors.ErrCodeInvalidFormat, err, "content type")
		}
		switch mt {
		case "application/json", "text/json":
		case "application/toml", "text/toml":
			format = problem.FormatTOML
		case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
			format = problem.FormatYAML
		default:
			return nil, vpscerrors.New(vpscerrors.ErrCodeInvalidFormat, "unsupported content type %q", mt)
		}
	}
	return problem.Read(r.Body, format)
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case vpscerrors.IsConfiguration(err):
		return http.StatusBadRequest
	case vpscerrors.Is(err, vpscerrors.ErrCodeOverflow):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "id", RequestID(r.Context()), "error", err)
	}
	msg := vpscerrors.UserMessage(err)
	var e *vpscerrors.Error
	if errors.As(err, &e) && e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	s.writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      string(vpscerrors.GetCode(err)),
		RequestID: RequestID(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.Copy(w, &buf)
}
