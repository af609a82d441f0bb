package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
)

// handleExport renders every finalized item from the record store into a
// single HTML release-notes page.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}
	items, err := s.records.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var md strings.Builder
	md.WriteString("# Release notes\n\n")
	count := 0
	for _, it := range items {
		if !it.Finalized() {
			continue
		}
		count++
		if it.Link != "" {
			md.WriteString(fmt.Sprintf("## [#%s](%s) %s\n\n", it.ID, it.Link, it.Description))
		} else {
			md.WriteString(fmt.Sprintf("## #%s %s\n\n", it.ID, it.Description))
		}
		md.WriteString(fmt.Sprintf("**Developer:** %s\n\n", it.Developer))
		md.WriteString(fmt.Sprintf("**Marketing:** %s\n\n", it.Marketing))
	}
	if count == 0 {
		md.WriteString("_No finalized notes yet._\n")
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, exportShell, buf.String())
}

const exportShell = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Release notes</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
h2 { border-top: 1px solid #eee; padding-top: 1rem; }
</style>
</head>
<body>
%s
</body>
</html>
`
