// Package web serves past eval runs over HTTP: a JSON API plus a minimal
// HTML index for browsing results without the CLI.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prompteval/prompteval/internal/logger"
	"github.com/prompteval/prompteval/pkg/report"
	"github.com/prompteval/prompteval/pkg/result"
)

// Server wraps the gin engine with graceful shutdown helpers.
type Server struct {
	outputDir string
	engine    *gin.Engine
	log       zerolog.Logger
}

// RunInfo is the per-run metadata returned by the run listing endpoint.
type RunInfo struct {
	RunID     string       `json:"run_id"`
	SuiteName string       `json:"suite_name"`
	StartTime time.Time    `json:"start_time"`
	File      string       `json:"file"`
	Stats     result.Stats `json:"stats"`
}

// New constructs the results server reading run files from outputDir.
func New(outputDir string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		outputDir: outputDir,
		engine:    engine,
		log:       logger.Get().With().Str("component", "web").Logger(),
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	engine.GET("/api/runs", s.listRuns)
	engine.GET("/api/runs/:id", s.getRun)
	engine.GET("/", s.index)

	return s
}

// Run starts the HTTP listener and shuts down gracefully when the context
// is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("results server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down results server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) loadRuns() ([]RunInfo, error) {
	files, err := result.ListRuns(s.outputDir)
	if err != nil {
		return nil, err
	}

	var runs []RunInfo
	for _, f := range files {
		summary, err := result.LoadSummary(f)
		if err != nil {
			s.log.Warn().Str("file", f).Err(err).Msg("skipping unreadable result file")
			continue
		}
		runs = append(runs, RunInfo{
			RunID:     summary.RunID,
			SuiteName: summary.SuiteName,
			StartTime: summary.StartTime,
			File:      filepath.Base(f),
			Stats:     summary.Stats,
		})
	}
	return runs, nil
}

func (s *Server) findRun(id string) (*result.RunSummary, error) {
	files, err := result.ListRuns(s.outputDir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		summary, err := result.LoadSummary(f)
		if err != nil {
			continue
		}
		if summary.RunID == id || filepath.Base(f) == id {
			return summary, nil
		}
	}
	return nil, fmt.Errorf("run %q not found", id)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.loadRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	summary, err := s.findRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"fmtDuration": report.FormatDuration,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>prompteval runs</title>
<style>
body { font-family: monospace; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
.pass { color: green; } .fail { color: red; }
</style>
</head>
<body>
<h1>Eval runs</h1>
<table>
<tr><th>Run</th><th>Suite</th><th>Started</th><th>Passed</th><th>Failed</th><th>Errored</th><th>Avg score</th><th>p95</th><th>Cost</th></tr>
{{range .}}
<tr>
<td><a href="/api/runs/{{.RunID}}">{{.RunID}}</a></td>
<td>{{.SuiteName}}</td>
<td>{{.StartTime.Format "2006-01-02 15:04:05"}}</td>
<td class="pass">{{.Stats.PassedCases}}</td>
<td class="fail">{{.Stats.FailedCases}}</td>
<td>{{.Stats.ErroredCases}}</td>
<td>{{printf "%.2f" .Stats.AvgScore}}</td>
<td>{{fmtDuration .Stats.LatencyP95}}</td>
<td>{{printf "$%.4f" .Stats.TotalCost}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))

func (s *Server) index(c *gin.Context) {
	runs, err := s.loadRuns()
	if err != nil {
		c.String(http.StatusInternalServerError, "error: %v", err)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(c.Writer, runs); err != nil {
		s.log.Error().Err(err).Msg("rendering index")
	}
}
