package console

import (
	"context"
	"html"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eventdesk/roster/internal/roster/view"
)

var filterOptions = []struct {
	value view.Filter
	label string
}{
	{view.FilterAll, "All Participants"},
	{view.FilterCheckedIn, "Checked In"},
	{view.FilterNotCheckedIn, "Not Checked In"},
}

var orderOptions = []struct {
	value view.Order
	label string
}{
	{view.OrderOldest, "Time (Oldest First)"},
	{view.OrderNewest, "Time (Newest First)"},
	{view.OrderNameAsc, "Name (A-Z)"},
	{view.OrderNameDesc, "Name (Z-A)"},
}

// StateQuery encodes state as the dashboard query string.
func StateQuery(state view.State) string {
	v := url.Values{}
	v.Set("filter", string(state.Filter))
	v.Set("order", string(state.Order))
	return v.Encode()
}

// DashboardPage renders the full admin dashboard.
func DashboardPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, renderDashboard(data))
		return err
	})
}

func renderDashboard(data PageData) string {
	var sb strings.Builder
	sb.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8"/>`)
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
	sb.WriteString(`<title>Admin Dashboard</title><link rel="stylesheet" href="/static/styles.css"/></head><body>`)
	sb.WriteString(`<main class="page">`)

	sb.WriteString(`<header class="page-header"><h1>Admin Dashboard</h1>`)
	sb.WriteString(`<form method="post" action="/refresh">`)
	writeStateInputs(&sb, data.State)
	sb.WriteString(`<button class="btn" type="submit">Refresh</button></form></header>`)

	renderNotices(&sb, data.Notices)
	renderStats(&sb, data)
	renderCreateForm(&sb, data)

	sb.WriteString(`<section class="card"><div class="card-header"><h2>Participants List</h2>`)
	renderViewControls(&sb, data.State)
	sb.WriteString(`</div>`)
	renderTable(&sb, data)
	sb.WriteString(`</section></main></body></html>`)
	return sb.String()
}

func renderNotices(sb *strings.Builder, notices []Notice) {
	if len(notices) == 0 {
		return
	}
	sb.WriteString(`<div class="toasts" role="status">`)
	for _, n := range notices {
		sb.WriteString(`<div class="toast toast-`)
		sb.WriteString(string(n.Kind))
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(n.Text))
		sb.WriteString(`</div>`)
	}
	sb.WriteString(`</div>`)
}

func renderStats(sb *strings.Builder, data PageData) {
	cards := []struct {
		label string
		value int
		class string
	}{
		{"Total Participants", data.Stats.Total, "stat-total"},
		{"Checked-in Participants", data.Stats.CheckedIn, "stat-in"},
		{"Not Checked-in Participants", data.Stats.NotCheckedIn, "stat-out"},
	}
	sb.WriteString(`<section class="stats">`)
	for _, c := range cards {
		sb.WriteString(`<div class="card stat `)
		sb.WriteString(c.class)
		sb.WriteString(`"><h3>`)
		sb.WriteString(c.label)
		sb.WriteString(`</h3><p class="stat-value">`)
		sb.WriteString(strconv.Itoa(c.value))
		sb.WriteString(`</p></div>`)
	}
	sb.WriteString(`</section>`)
}

func renderCreateForm(sb *strings.Builder, data PageData) {
	sb.WriteString(`<section class="card"><form class="create-form" method="post" action="/participants">`)
	writeStateInputs(sb, data.State)
	sb.WriteString(`<label for="create-name">Full Name *</label>`)
	sb.WriteString(`<input id="create-name" name="name" type="text" placeholder="e.g. John Doe" autocomplete="off"/>`)
	sb.WriteString(`<button class="btn btn-primary" type="submit"`)
	if data.Busy[createGuardKey] {
		sb.WriteString(` disabled>Creating...`)
	} else {
		sb.WriteString(`>Create Participant`)
	}
	sb.WriteString(`</button></form></section>`)
}

func renderViewControls(sb *strings.Builder, state view.State) {
	sb.WriteString(`<form class="view-controls" method="get" action="/">`)
	sb.WriteString(`<select name="filter" onchange="this.form.submit()">`)
	for _, o := range filterOptions {
		writeOption(sb, string(o.value), o.label, o.value == state.Filter)
	}
	sb.WriteString(`</select><select name="order" onchange="this.form.submit()">`)
	for _, o := range orderOptions {
		writeOption(sb, string(o.value), o.label, o.value == state.Order)
	}
	sb.WriteString(`</select><noscript><button class="btn" type="submit">Apply</button></noscript></form>`)
}

func renderTable(sb *strings.Builder, data PageData) {
	sb.WriteString(`<table class="participants"><thead><tr>`)
	for _, h := range []string{"No", "Queue No", "Name", "Status", "Time", "QR", "Actions"} {
		sb.WriteString(`<th>`)
		sb.WriteString(h)
		sb.WriteString(`</th>`)
	}
	sb.WriteString(`</tr></thead><tbody>`)

	if len(data.Rows) == 0 {
		sb.WriteString(`<tr><td colspan="7" class="empty">`)
		if data.Loaded {
			sb.WriteString(`No participants found`)
		} else {
			sb.WriteString(`Participants have not been loaded yet`)
		}
		sb.WriteString(`</td></tr></tbody></table>`)
		return
	}

	query := StateQuery(data.State)
	for _, row := range data.Rows {
		id := html.EscapeString(row.ID)
		path := "/participants/" + html.EscapeString(url.PathEscape(row.ID))
		busy := data.Busy[row.ID]

		sb.WriteString(`<tr data-participant-id="`)
		sb.WriteString(id)
		sb.WriteString(`"><td class="muted">`)
		sb.WriteString(strconv.Itoa(row.No))
		sb.WriteString(`</td><td class="queue">`)
		sb.WriteString(html.EscapeString(row.Queue))
		sb.WriteString(`</td><td class="name">`)
		sb.WriteString(html.EscapeString(row.Name))
		sb.WriteString(`</td><td>`)
		if row.CheckedIn {
			sb.WriteString(`<span class="badge badge-in">In</span>`)
		} else {
			sb.WriteString(`<span class="badge badge-out">Out</span>`)
		}
		sb.WriteString(`</td><td class="mono">`)
		sb.WriteString(html.EscapeString(row.Time))
		sb.WriteString(`</td><td>`)
		if row.Generating {
			sb.WriteString(`<span class="muted">Generating...</span>`)
		} else {
			sb.WriteString(`<a class="link" href="`)
			sb.WriteString(path)
			sb.WriteString(`/badge?`)
			sb.WriteString(html.EscapeString(query))
			sb.WriteString(`">Download</a>`)
		}
		sb.WriteString(`</td><td class="actions">`)

		sb.WriteString(`<details><summary>Edit</summary><form method="post" action="`)
		sb.WriteString(path)
		sb.WriteString(`/edit">`)
		writeStateInputs(sb, data.State)
		sb.WriteString(`<label>Name<input name="name" type="text" value="`)
		sb.WriteString(html.EscapeString(row.Name))
		sb.WriteString(`"/></label><label>Status<select name="status">`)
		writeOption(sb, "In", "Checked In", row.CheckedIn)
		writeOption(sb, "Out", "Not Checked In", !row.CheckedIn)
		sb.WriteString(`</select></label>`)
		writeSubmit(sb, "btn btn-primary", "Save Changes", busy)
		sb.WriteString(`</form></details>`)

		sb.WriteString(`<details><summary>Delete</summary><form method="post" action="`)
		sb.WriteString(path)
		sb.WriteString(`/delete">`)
		writeStateInputs(sb, data.State)
		sb.WriteString(`<p>Are you sure you want to delete <strong>`)
		sb.WriteString(html.EscapeString(row.Name))
		sb.WriteString(`</strong>?</p>`)
		writeSubmit(sb, "btn btn-danger", "Delete", busy)
		sb.WriteString(`</form></details></td></tr>`)
	}
	sb.WriteString(`</tbody></table>`)
}

func writeStateInputs(sb *strings.Builder, state view.State) {
	sb.WriteString(`<input type="hidden" name="filter" value="`)
	sb.WriteString(html.EscapeString(string(state.Filter)))
	sb.WriteString(`"/><input type="hidden" name="order" value="`)
	sb.WriteString(html.EscapeString(string(state.Order)))
	sb.WriteString(`"/>`)
}

func writeOption(sb *strings.Builder, value, label string, selected bool) {
	sb.WriteString(`<option value="`)
	sb.WriteString(html.EscapeString(value))
	sb.WriteString(`"`)
	if selected {
		sb.WriteString(` selected`)
	}
	sb.WriteString(`>`)
	sb.WriteString(html.EscapeString(label))
	sb.WriteString(`</option>`)
}

func writeSubmit(sb *strings.Builder, class, label string, disabled bool) {
	sb.WriteString(`<button type="submit" class="`)
	sb.WriteString(class)
	sb.WriteString(`"`)
	if disabled {
		sb.WriteString(` disabled`)
	}
	sb.WriteString(`>`)
	sb.WriteString(label)
	sb.WriteString(`</button>`)
}
