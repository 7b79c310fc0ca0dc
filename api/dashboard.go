package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"sort"
	"strconv"

	"publicresolvers/stats"

	"github.com/gin-gonic/gin"
)

const (
	statsPageLimit    = 10
	statsPageMaxLimit = 100
)

type rankedRow struct {
	Code  string
	Name  string
	Count int
}

// dashboardData is the struct passed to the stats page template.
type dashboardData struct {
	LastUpdated     string
	UpdateFrequency string
	DataSource      string
	Totals          stats.Totals
	Features        stats.Features
	Continents      []rankedRow
	Countries       []rankedRow
	Organizations   []stats.NamedCount
	Limit           int
}

// statsDocument mirrors the parts of data/stats.json the dashboard shows.
// by_country stays raw so its ranking order can be read back.
type statsDocument struct {
	LastUpdated      string                      `json:"last_updated"`
	UpdateFrequency  string                      `json:"update_frequency"`
	DataSource       string                      `json:"data_source"`
	Totals           stats.Totals                `json:"totals"`
	ByFeature        stats.Features              `json:"by_feature"`
	ByContinent      map[string]stats.NamedCount `json:"by_continent"`
	ByCountry        json.RawMessage             `json:"by_country"`
	TopOrganizations []stats.NamedCount          `json:"top_organizations"`
}

var statsPageTemplate = template.Must(template.New("stats").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Public DNS Resolvers</title>
  <style>
    :root {
      --bg: #0d1117;
      --bg-panel: #161b22;
      --bg-hover: #21262d;
      --border: #30363d;
      --text: #e6edf3;
      --text-muted: #8b949e;
      --accent: #58a6ff;
      --success: #3fb950;
      --warning: #d29922;
      --danger: #f85149;
    }
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Noto Sans', Helvetica, Arial, sans-serif;
      background: var(--bg);
      color: var(--text);
      margin: 0;
      padding: 1.5rem;
      line-height: 1.5;
      min-height: 100vh;
    }
    h1 {
      font-size: 1.5rem;
      font-weight: 600;
      margin: 0 0 1.5rem 0;
      color: var(--text);
    }
    .grid {
      display: grid;
      grid-template-columns: repeat(auto-fill, minmax(280px, 1fr));
      gap: 1rem;
    }
    .panel {
      background: var(--bg-panel);
      border: 1px solid var(--border);
      border-radius: 8px;
      padding: 1rem 1.25rem;
      overflow: hidden;
    }
    .panel h2 {
      font-size: 0.875rem;
      font-weight: 600;
      color: var(--text-muted);
      text-transform: uppercase;
      letter-spacing: 0.03em;
      margin: 0 0 0.75rem 0;
      padding-bottom: 0.5rem;
      border-bottom: 1px solid var(--border);
    }
    .panel ul { margin: 0; padding: 0; list-style: none; }
    .panel li {
      display: flex;
      justify-content: space-between;
      align-items: baseline;
      padding: 0.35rem 0;
      border-bottom: 1px solid var(--border);
    }
    .panel li:last-child { border-bottom: none; }
    .panel .key { color: var(--text-muted); }
    .panel .val { font-variant-numeric: tabular-nums; color: var(--text); }
    .panel.wide { grid-column: 1 / -1; }
    table {
      width: 100%;
      border-collapse: collapse;
      font-size: 0.875rem;
    }
    th, td { padding: 0.5rem 0.75rem; text-align: left; border-bottom: 1px solid var(--border); }
    th { color: var(--text-muted); font-weight: 600; }
    tr:last-child td { border-bottom: none; }
    tr:hover td { background: var(--bg-hover); }
    a { color: var(--accent); text-decoration: none; }
    a:hover { text-decoration: underline; }
    .muted { color: var(--text-muted); font-size: 0.875rem; margin-top: 1rem; }
  </style>
</head>
<body>
  <h1>Public DNS Resolvers</h1>
  <div class="grid">
    <div class="panel">
      <h2>Totals</h2>
      <ul>
        <li><span class="key">Servers</span><span class="val">{{.Totals.Servers}}</span></li>
        <li><span class="key">IPv4</span><span class="val">{{.Totals.IPv4}}</span></li>
        <li><span class="key">IPv6</span><span class="val">{{.Totals.IPv6}}</span></li>
        <li><span class="key">Countries</span><span class="val">{{.Totals.Countries}}</span></li>
        <li><span class="key">Continents</span><span class="val">{{.Totals.Continents}}</span></li>
        <li><span class="key">Organizations</span><span class="val">{{.Totals.Organizations}}</span></li>
      </ul>
    </div>
    <div class="panel">
      <h2>Features</h2>
      <ul>
        <li><span class="key">Trusted</span><span class="val">{{.Features.Trusted}}</span></li>
        <li><span class="key">DNSSEC aware</span><span class="val">{{.Features.DNSSECAware}}</span></li>
        <li><span class="key">DNSSEC validating</span><span class="val">{{.Features.DNSSECValidating}}</span></li>
        <li><span class="key">Ad blocking</span><span class="val">{{.Features.AdBlocking}}</span></li>
        <li><span class="key">Malware blocking</span><span class="val">{{.Features.MalwareBlocking}}</span></li>
        <li><span class="key">Adult blocking</span><span class="val">{{.Features.AdultBlocking}}</span></li>
        <li><span class="key">Anycast</span><span class="val">{{.Features.Anycast}}</span></li>
        <li><span class="key">High uptime (30d)</span><span class="val">{{.Features.HighUptime30d}}</span></li>
      </ul>
    </div>
    <div class="panel">
      <h2>Continents</h2>
      <ul>
        {{range .Continents}}<li><span class="key">{{.Name}} ({{.Code}})</span><span class="val">{{.Count}}</span></li>{{end}}
      </ul>
    </div>
    <div class="panel wide">
      <h2>Countries</h2>
      <p class="muted">
        {{if le .Limit 10}}<a href="/?full=100">Show more</a> (up to 100){{else}}<a href="/">Show top 10</a>{{end}}
      </p>
      <table>
        <thead><tr><th>Code</th><th>Country</th><th>Servers</th><th>List</th></tr></thead>
        <tbody>
          {{range .Countries}}<tr><td>{{.Code}}</td><td>{{.Name}}</td><td>{{.Count}}</td><td><a href="/resolvers/by-country/{{.Code}}.txt">{{.Code}}.txt</a></td></tr>{{end}}
        </tbody>
      </table>
    </div>
    {{if .Organizations}}
    <div class="panel wide">
      <h2>Top organizations</h2>
      <table>
        <thead><tr><th>Organization</th><th>Servers</th></tr></thead>
        <tbody>
          {{range .Organizations}}<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>{{end}}
        </tbody>
      </table>
    </div>
    {{end}}
  </div>
  <p class="muted">Updated {{.LastUpdated}} ({{.UpdateFrequency}}) from <a href="{{.DataSource}}">{{.DataSource}}</a> · JSON: <a href="/stats">/stats</a> · Lists: <a href="/resolvers/global/all.txt">all.txt</a>, <a href="/resolvers/global/trusted.txt">trusted.txt</a></p>
</body>
</html>
`))

// dashboard serves a dark-themed read-only page summarising the latest generation.
func (h *handlers) dashboard(c *gin.Context) {
	raw, err := h.loadStats()
	if errors.Is(err, os.ErrNotExist) {
		c.String(http.StatusServiceUnavailable, "statistics not generated yet")
		return
	}
	var doc statsDocument
	if err == nil {
		err = json.Unmarshal(raw, &doc)
	}
	var countries []rankedRow
	if err == nil {
		countries, err = orderedCountries(doc.ByCountry)
	}
	if err != nil {
		h.logger.Error("read statistics", "error", err)
		c.String(http.StatusInternalServerError, "statistics unreadable")
		return
	}

	limit := statsPageLimit
	if n := c.Query("full"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 && v <= statsPageMaxLimit {
			limit = v
		}
	}
	if len(countries) > limit {
		countries = countries[:limit]
	}

	continents := make([]rankedRow, 0, len(doc.ByContinent))
	for code, nc := range doc.ByContinent {
		continents = append(continents, rankedRow{Code: code, Name: nc.Name, Count: nc.Count})
	}
	sort.Slice(continents, func(i, j int) bool { return continents[i].Code < continents[j].Code })

	page := dashboardData{
		LastUpdated:     doc.LastUpdated,
		UpdateFrequency: doc.UpdateFrequency,
		DataSource:      doc.DataSource,
		Totals:          doc.Totals,
		Features:        doc.ByFeature,
		Continents:      continents,
		Countries:       countries,
		Organizations:   doc.TopOrganizations,
		Limit:           limit,
	}
	var buf bytes.Buffer
	if err := statsPageTemplate.Execute(&buf, page); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// orderedCountries reads the by_country object keeping its key order, which
// is the ranking order written by the generator.
func orderedCountries(raw json.RawMessage) ([]rankedRow, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("by_country: expected object, got %v", tok)
	}
	var rows []rankedRow
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		code, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("by_country: unexpected key %v", tok)
		}
		var nc stats.NamedCount
		if err := dec.Decode(&nc); err != nil {
			return nil, fmt.Errorf("by_country %s: %w", code, err)
		}
		rows = append(rows, rankedRow{Code: code, Name: nc.Name, Count: nc.Count})
	}
	return rows, nil
}
