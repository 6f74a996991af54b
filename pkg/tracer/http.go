// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tracer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/stage"
	"github.com/google/lkd/pkg/stat"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServer struct {
	// To be set before calling Serve.
	Addr     string
	Name     string
	Tracer   *Tracer
	Printer  *stage.Printer
	Stats    *stat.Set
	Gatherer prometheus.Gatherer
}

func (serv *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, handler func(http.ResponseWriter, *http.Request)) {
		mux.Handle(pattern, handlers.CompressHandler(http.HandlerFunc(handler)))
	}
	gatherer := serv.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	// keep-sorted start
	handle("/", serv.httpMain)
	handle("/log", serv.httpLog)
	handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	handle("/reports", serv.httpReports)
	handle("/triggers", serv.httpTriggers)
	// keep-sorted end
	handle("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

func (serv *HTTPServer) Serve(ctx context.Context) error {
	if serv.Addr == "" {
		return fmt.Errorf("starting a disabled HTTP server")
	}
	log.Logf(0, "serving http on http://%v", serv.Addr)
	server := &http.Server{
		Addr:              serv.Addr,
		Handler:           serv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

type uiSummary struct {
	Name    string
	Status  Status
	Stats   []stat.UI
	Reports int
	Log     string
}

func (serv *HTTPServer) httpMain(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := &uiSummary{
		Name:    serv.Name,
		Status:  serv.Tracer.Status(),
		Reports: serv.Printer.Total(),
		Log:     log.CachedLogOutput(),
	}
	if serv.Stats != nil {
		data.Stats = serv.Stats.Collect(stat.All)
	}
	buf := new(bytes.Buffer)
	if err := mainTemplate.Execute(buf, data); err != nil {
		http.Error(w, fmt.Sprintf("failed to execute template: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (serv *HTTPServer) httpTriggers(w http.ResponseWriter, r *http.Request) {
	text, err := json.MarshalIndent(serv.Tracer.Status(), "", "\t")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode json: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(text)
}

func (serv *HTTPServer) httpReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, rep := range serv.Printer.Recent() {
		fmt.Fprintf(w, "# %v at %v\n", rep.Trigger, rep.Time.Format(time.RFC3339))
		rep.WriteTo(w)
	}
}

func (serv *HTTPServer) httpLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, log.CachedLogOutput())
}

var mainTemplate = template.Must(template.New("main").Parse(`
<!doctype html>
<html>
<head>
	<title>{{.Name}}</title>
</head>
<body>
<h1>{{.Name}}: {{.Status.Scenario}}</h1>
<table>
	<tr><td>session</td><td>{{.Status.ID}}</td></tr>
	<tr><td>started</td><td>{{.Status.Started.Format "2006-01-02 15:04:05"}}</td></tr>
	<tr><td>state</td><td>{{.Status.State}}</td></tr>
	<tr><td>last stop</td><td>{{.Status.Stop}}</td></tr>
	{{if .Status.LastError}}<tr><td>last error</td><td>{{.Status.LastError}}</td></tr>{{end}}
	<tr><td>reports</td><td><a href="/reports">{{.Reports}}</a></td></tr>
	{{range $stat := .Stats}}
	<tr><td title="{{$stat.Desc}}">{{$stat.Name}}</td><td>{{$stat.Value}}</td></tr>
	{{end}}
</table>
<h2><a href="/triggers">triggers</a></h2>
<table>
	<tr><th>name</th><th>location</th><th>context</th><th>state</th><th>hits</th></tr>
	{{range $t := .Status.Triggers}}
	<tr><td>{{$t.Name}}</td><td>{{$t.Location}}</td><td>{{$t.Context}}</td><td>{{$t.State}}</td><td>{{$t.Hits}}</td></tr>
	{{end}}
</table>
<h2><a href="/log">log</a></h2>
<pre>{{.Log}}</pre>
</body>
</html>
`))
