// ABOUTME: Template parsing, page data types, and rendering for the web console
// ABOUTME: Each page is parsed with the shared base layout from the embedded filesystem

package webconsole

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/posible/posible-admin/internal/chat"
	"github.com/posible/posible-admin/internal/dashboard"
	"github.com/posible/posible-admin/internal/schedule"
)

var pages = []string{
	"login",
	"loading",
	"dashboard",
	"users",
	"schedules",
	"upload",
	"integrations",
	"connecting",
	"chat",
}

var templateFuncs = template.FuncMap{
	"formatDays": schedule.FormatDays,
	"formatHour": schedule.FormatHour,
	"summary":    schedule.Summary,
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", page, err)
		}
		out[page] = tmpl
	}
	return out, nil
}

// pageData is shared by every page. Email is empty on public pages.
type pageData struct {
	Title     string
	Nav       string
	Email     string
	DBName    string
	CSRFToken string
	Flash     *flash
	Error     string
}

type loginForm struct {
	Email string
	From  string
}

type loginData struct {
	pageData
	Form loginForm
}

type dashboardData struct {
	pageData
	Stats dashboard.Stats
}

type usersData struct {
	pageData
	Users []userRow
}

type userRow struct {
	Name       string
	FromNumber string
	IsAdmin    bool
}

type schedulesData struct {
	pageData
	Schedules []scheduleRow
	Phone     string
	Week      []schedule.Day
	Hours     []int
	Form      scheduleForm
}

type scheduleRow struct {
	ID       int64
	Query    string
	ToNumber string
	Day      string
	Hour     int
}

// scheduleForm is the create/edit form. ID is zero when creating.
type scheduleForm struct {
	ID       int64
	Request  string
	ToNumber string
	Days     map[string]bool
	Hour     int
}

type uploadData struct {
	pageData
	Result     string
	PrimaryKey string
}

type integrationsData struct {
	pageData
	Integrations []integrationRow
	ToastKey     bool
}

type integrationRow struct {
	Provider       string
	Name           string
	Description    string
	Connected      bool
	ConnectedSince string
	MerchantID     string
	APIKey         bool
}

type connectingData struct {
	pageData
	Provider     string
	Name         string
	AuthURL      string
	PollMillis   int64
	RefreshDelay int64
}

type chatData struct {
	pageData
	Messages []chatRow
	Sending  bool
}

type chatRow struct {
	User    bool
	Content string
	HTML    template.HTML
	Error   bool
}

// basePage fills the shared fields for a signed-in page.
func (c *Console) basePage(w http.ResponseWriter, r *http.Request, title, nav string) pageData {
	_, token := c.ensureCSRFToken(w, r)
	data := pageData{Title: title, Nav: nav, CSRFToken: token}

	cs := consoleFrom(r)
	if cs == nil {
		return data
	}
	if id, ok := cs.store.Identity(); ok {
		data.Email = id.Email
	}
	if db, err := cs.tenant.DBName(); err == nil {
		data.DBName = db
	}
	data.Flash = cs.takeFlash()
	return data
}

func (c *Console) renderLogin(w http.ResponseWriter, form loginForm, errMsg, csrfToken string) {
	status := http.StatusOK
	if errMsg != "" {
		status = http.StatusUnauthorized
	}
	c.render(w, "login", status, loginData{
		pageData: pageData{Title: "Login", Error: errMsg, CSRFToken: csrfToken},
		Form:     form,
	})
}

func (c *Console) render(w http.ResponseWriter, page string, status int, data any) {
	tmpl, ok := c.templates[page]
	if !ok {
		c.logger.Error("unknown template", "page", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		c.logger.Error("failed to render page", "page", page, "error", err)
	}
}

func chatRows(msgs []chat.Message) []chatRow {
	rows := make([]chatRow, 0, len(msgs))
	for _, m := range msgs {
		row := chatRow{User: m.Role == chat.RoleUser, Content: m.Content, Error: m.Error}
		if !row.User && !m.Error {
			if html, err := chat.RenderMarkdown(m.Content); err == nil {
				row.HTML = html
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func hours() []int {
	out := make([]int, 24)
	for i := range out {
		out[i] = i
	}
	return out
}
