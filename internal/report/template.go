package report

// PageTemplate is the HTML template for the dashboard page.
// It is embedded as a Go constant.
const PageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}{{if .CategoryName}} · {{.CategoryName}}{{end}}</title>
{{if .InlineCSS}}<style>{{.InlineCSS}}</style>{{else}}<link rel="stylesheet" href="{{.StaticPrefix}}/style.css">{{end}}
</head>
<body>
<div class="layout">

<!-- ═══════ SIDEBAR ═══════ -->
<aside class="sidebar">
  <h2>Category Selection</h2>
  {{if .Interactive}}
  <form id="controls" method="get" action="/">
    <label for="search">Search categories</label>
    <input id="search" name="search" type="text" value="{{.Search}}" placeholder="e.g., defi, nft, governance">
    {{if .Options}}
    <label for="category">Select a category</label>
    <select id="category" name="category">
      {{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
      {{end}}
    </select>
    {{end}}
    <button type="submit">Show</button>
  </form>
  {{else}}
  <p>Search: <strong>{{if .Search}}{{.Search}}{{else}}(all){{end}}</strong></p>
  {{if .CategoryName}}<p>Category: <strong>{{.CategoryName}}</strong></p>{{end}}
  {{end}}
</aside>

<main id="dashboard"{{if .Live}} data-live="1" data-search="{{.Search}}" data-category="{{.CategoryName}}"{{end}}>
  <h1>{{.Title}}</h1>

  {{if .Message}}<div class="alert {{.MessageClass}}" role="alert">{{.Message}}</div>{{end}}

  {{if .Rendered}}
  <!-- ═══════ OVERVIEW ═══════ -->
  <h2>📊 {{.CategoryName}} Overview</h2>
  <div class="tiles">
    {{range .Tiles}}<div class="tile" data-key="{{.Key}}"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>
    {{end}}
  </div>

  <!-- ═══════ CHARTS ═══════ -->
  <h3>Performance Analysis</h3>
  {{range .Charts}}
  <section class="chart" data-kind="{{.Kind}}" data-status="{{.Status}}">
    <div class="svg">{{.SVG}}</div>
    {{if .Message}}<div class="note">{{.Message}}</div>{{end}}
  </section>
  {{end}}

  <!-- ═══════ HEADLINES ═══════ -->
  {{if .ShowHeadlines}}
  <h3>Latest Headlines</h3>
  {{if .Headlines}}
  <ul class="headlines">
    {{range .Headlines}}
    <li>
      <a href="{{.Link}}" target="_blank" rel="noopener">{{.Title}}</a>
      <div class="meta">{{.Source}}{{if .Published}} · {{.Published}}{{end}}</div>
      {{if .Summary}}<div>{{.Summary}}</div>{{end}}
    </li>
    {{end}}
  </ul>
  {{else}}
  <p class="note">{{.HeadlinesMessage}}</p>
  {{end}}
  {{end}}
  {{end}}

  <!-- ═══════ FOOTER ═══════ -->
  <footer>
    {{if .Live}}<span id="live-dot" class="live"></span>{{end}}Data from CoinGecko · Rendered <span id="rendered-at">{{.GeneratedAt}}</span>
  </footer>
</main>
</div>
{{if .Interactive}}<script src="{{.StaticPrefix}}/app.js"></script>{{end}}
</body>
</html>`
