package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// PageOption configures a Page.
type PageOption func(*Page)

// WithTitle sets the document title.
func WithTitle(title string) PageOption {
	return func(p *Page) {
		p.title = title
	}
}

// Page is the HTML result view: a file count, a timer and the
// uploadStatus area whose border colour follows the batch state.
type Page struct {
	mu        sync.RWMutex
	title     string
	fileCount int
	fragments []model.Fragment
	state     model.BatchState
	timer     string
}

// NewPage returns an empty page in the Idle state.
func NewPage(opts ...PageOption) *Page {
	p := &Page{title: "Object Detection"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetFileCount sets the "Selected files" counter.
func (p *Page) SetFileCount(n int) {
	p.mu.Lock()
	p.fileCount = n
	p.mu.Unlock()
}

// Append adds a fragment to uploadStatus.
func (p *Page) Append(f model.Fragment) error {
	p.mu.Lock()
	p.fragments = append(p.fragments, f)
	p.mu.Unlock()
	return nil
}

// SetState updates the border state.
func (p *Page) SetState(s model.BatchState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// SetTimer updates the timer text.
func (p *Page) SetTimer(text string) {
	p.mu.Lock()
	p.timer = text
	p.mu.Unlock()
}

// Snapshot is a consistent copy of the page content.
type Snapshot struct {
	Title     string
	FileCount int
	Fragments []model.Fragment
	State     model.BatchState
	Timer     string
}

// Snapshot copies the current content.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	frags := make([]model.Fragment, len(p.fragments))
	copy(frags, p.fragments)
	return Snapshot{
		Title:     p.title,
		FileCount: p.fileCount,
		Fragments: frags,
		State:     p.state,
		Timer:     p.timer,
	}
}

type pageData struct {
	Snapshot
	Color     string
	Live      bool
	Fragments []template.HTML
}

// Render writes the page as a standalone HTML document.
func (p *Page) Render(w io.Writer) error {
	return p.render(w, false)
}

func (p *Page) render(w io.Writer, live bool) error {
	snap := p.Snapshot()
	data := pageData{
		Snapshot:  snap,
		Color:     snap.State.Color(),
		Live:      live,
		Fragments: make([]template.HTML, len(snap.Fragments)),
	}
	for i, f := range snap.Fragments {
		// Fragment HTML escapes every interpolated value when it is built.
		data.Fragments[i] = template.HTML(f.HTML) //nolint:gosec // built from escaped parts
	}
	return pageTemplate.Execute(w, data)
}

// WriteFile renders the page to path, creating parent directories.
func (p *Page) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
#uploadStatus { border: 3px solid #ccc; padding: 1em; min-height: 4em; }
.detection-item { border-bottom: 1px solid #eee; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p id="fileCount">Selected files: {{.FileCount}}</p>
<p id="timer">{{.Timer}}</p>
<div id="uploadStatus" data-state="{{.State}}"{{if .Color}} style="border-color: {{.Color}}"{{end}}>
{{- range .Fragments}}{{.}}{{end -}}
</div>
{{- if .Live}}
<script>
(function() {
  var status = document.getElementById('uploadStatus');
  var timer = document.getElementById('timer');
  var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  var ws = new WebSocket(proto + '//' + location.host + '/ws');
  var seen = false;
  ws.onmessage = function(e) {
    var msg;
    try { msg = JSON.parse(e.data); } catch (err) { return; }
    switch (msg.type) {
      case 'reset':
        if (!seen) { status.innerHTML = ''; seen = true; }
        break;
      case 'fragment':
        status.insertAdjacentHTML('beforeend', msg.html);
        break;
      case 'timer':
        timer.textContent = msg.text;
        break;
      case 'state':
        status.dataset.state = msg.state;
        status.style.borderColor = msg.color || '';
        break;
    }
  };
})();
</script>
{{- end}}
</body>
</html>
`))
