package httpapi

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"marketpulse/internal/controller"
	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
)

//go:embed index.html
var indexHTML string

//go:embed app.js
var appJS []byte

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"currency":  dashboard.FormatCurrency,
	"marketCap": dashboard.FormatMarketCap,
	"percent":   dashboard.FormatPercent,
	"tone":      dashboard.Tone,
	"label":     dashboard.SortKeyLabel,
}).Parse(indexHTML))

// column is one sortable table header.
type column struct {
	Key    dashboard.SortKey
	Label  string
	Active bool
	Arrow  string
}

type pageData struct {
	State   controller.State
	Rows    []InstrumentJSON
	Columns []column
	Ranges  []domain.ChartRange
}

func (s *DashboardServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	data := pageData{
		State:  st,
		Rows:   convertInstruments(st.Instruments, st.Flash, s.now()),
		Ranges: domain.AllRanges(),
	}
	for _, k := range dashboard.SortKeys() {
		if k == dashboard.SortName || k == dashboard.SortTicker {
			continue
		}
		col := column{Key: k, Label: dashboard.SortKeyLabel(k)}
		if st.Sort.Key == k {
			col.Active = true
			col.Arrow = st.Sort.Dir.Arrow()
		}
		data.Columns = append(data.Columns, col)
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		s.log.Error("rendering index", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func handleAppJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(appJS)
}
