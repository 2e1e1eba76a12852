// ABOUTME: Handlers for the signed-in console screens
// ABOUTME: Dashboard, users, schedules, CSV upload, integrations and chat over the tenant API

package webconsole

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/posible/posible-admin/internal/admin"
	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/schedule"
	"github.com/posible/posible-admin/internal/tenant"
)

func (c *Console) handleDashboard(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	base := c.basePage(w, r, "Dashboard", "dashboard")

	stats := cs.dashboard.Load(r.Context())
	if stats.IsDegraded() && c.cfg.Recorder != nil {
		c.cfg.Recorder.ObserveDegraded(stats.Degraded)
	}
	c.render(w, "dashboard", http.StatusOK, dashboardData{pageData: base, Stats: stats})
}

// Users

func (c *Console) handleUsers(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Users", "users")
	page := usersData{pageData: data}

	users, err := cs.api.Users(r.Context())
	if err != nil {
		page.Error = errorText(err, "Failed to load users. Please try again.")
	}
	for _, u := range users {
		page.Users = append(page.Users, userRow{Name: u.Name, FromNumber: u.FromNumber, IsAdmin: u.IsAdmin})
	}
	c.render(w, "users", http.StatusOK, page)
}

func (c *Console) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	user := backend.NewUser{
		Name:        r.FormValue("name"),
		PhoneNumber: r.FormValue("phone_number"),
		IsAdmin:     r.FormValue("is_admin") != "",
	}

	if err := cs.api.CreateUser(r.Context(), user); err != nil {
		cs.setFlash(errorText(err, "Failed to add user. Please try again."), true)
	} else {
		cs.setFlash("User added", false)
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (c *Console) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	phone := r.PathValue("phone")

	if err := cs.api.DeleteUser(r.Context(), phone); err != nil {
		cs.setFlash(errorText(err, "Failed to delete user. Please try again."), true)
	} else {
		cs.setFlash("User deleted", false)
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

// Schedules

func (c *Console) handleSchedules(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Schedules", "schedules")
	page := schedulesData{
		pageData: data,
		Phone:    strings.TrimSpace(r.URL.Query().Get("phone")),
		Week:     schedule.Week,
		Hours:    hours(),
		Form:     scheduleForm{Days: map[string]bool{}, Hour: 9},
	}

	list, err := cs.api.Schedules(r.Context(), page.Phone)
	if err != nil {
		page.Error = errorText(err, "Failed to load schedules. Please try again.")
	}
	for _, s := range list {
		page.Schedules = append(page.Schedules, scheduleRow{ID: s.ID, Query: s.Query, ToNumber: s.ToNumber, Day: s.Day, Hour: s.Hour})
	}

	// ?edit=<id> prefills the form from the listed schedule
	if editID, err := strconv.ParseInt(r.URL.Query().Get("edit"), 10, 64); err == nil {
		for _, s := range list {
			if s.ID != editID {
				continue
			}
			days, _ := schedule.ParseDays(s.Day)
			page.Form = scheduleForm{ID: s.ID, Request: s.Query, ToNumber: s.ToNumber, Days: daySet(days), Hour: s.Hour}
		}
	}

	c.render(w, "schedules", http.StatusOK, page)
}

func (c *Console) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	if err := r.ParseForm(); err != nil {
		cs.setFlash(msgBadRequest, true)
		http.Redirect(w, r, "/admin/schedules", http.StatusSeeOther)
		return
	}

	req, err := scheduleRequest(r)
	if err == nil {
		if rawID := r.FormValue("id"); rawID != "" {
			var id int64
			id, err = strconv.ParseInt(rawID, 10, 64)
			if err == nil {
				err = cs.api.EditSchedule(r.Context(), id, req)
			}
		} else {
			err = cs.api.CreateSchedule(r.Context(), req)
		}
	}

	switch {
	case err != nil:
		cs.setFlash(scheduleErrorText(err), true)
	case r.FormValue("id") != "":
		cs.setFlash("Schedule updated", false)
	default:
		cs.setFlash("Schedule created", false)
	}
	http.Redirect(w, r, "/admin/schedules", http.StatusSeeOther)
}

func (c *Console) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err == nil {
		err = cs.api.DeleteSchedule(r.Context(), id, r.FormValue("to_number"))
	}
	if err != nil {
		cs.setFlash(errorText(err, "Failed to delete schedule. Please try again."), true)
	} else {
		cs.setFlash("Schedule deleted", false)
	}
	http.Redirect(w, r, "/admin/schedules", http.StatusSeeOther)
}

func scheduleRequest(r *http.Request) (backend.ScheduleRequest, error) {
	days, err := schedule.ParseDays(r.Form["days"]...)
	if err != nil {
		return backend.ScheduleRequest{}, err
	}
	hour, err := schedule.ParseHour(r.FormValue("hour"))
	if err != nil {
		return backend.ScheduleRequest{}, err
	}
	return backend.ScheduleRequest{
		Request:  strings.TrimSpace(r.FormValue("request")),
		ToNumber: strings.TrimSpace(r.FormValue("to_number")),
		Days:     days,
		Hour:     hour,
	}, nil
}

func scheduleErrorText(err error) string {
	switch {
	case errors.Is(err, schedule.ErrNoDays):
		return "Please select at least one day"
	case errors.Is(err, schedule.ErrHourRange):
		return "Hour must be between 0 and 23"
	}
	return errorText(err, "Failed to save schedule. Please try again.")
}

func daySet(days []string) map[string]bool {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// Upload

func (c *Console) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	data := c.basePage(w, r, "Upload", "upload")
	c.render(w, "upload", http.StatusOK, uploadData{pageData: data})
}

func (c *Console) handleUpload(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Upload", "upload")
	page := uploadData{pageData: data, PrimaryKey: r.FormValue("primary_key")}

	file, header, err := r.FormFile("file")
	if err != nil {
		page.Error = "Please select a CSV file"
		c.render(w, "upload", http.StatusBadRequest, page)
		return
	}
	defer file.Close()

	res, err := cs.api.UploadCSV(r.Context(), header.Filename, file, page.PrimaryKey)
	if err != nil {
		page.Error = errorText(err, "Upload failed. Please try again.")
		c.render(w, "upload", http.StatusOK, page)
		return
	}
	page.Result = res.Message
	if page.Result == "" {
		page.Result = "File uploaded successfully"
	}
	c.render(w, "upload", http.StatusOK, page)
}

// Integrations

func (c *Console) handleIntegrations(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Integrations", "integrations")
	page := integrationsData{pageData: data, ToastKey: r.URL.Query().Get("toast") == "1"}

	list, err := cs.api.Integrations(r.Context())
	if err != nil {
		page.Error = errorText(err, "Failed to load integrations. Please try again.")
	}
	for _, in := range list {
		page.Integrations = append(page.Integrations, integrationRow{
			Provider:       in.Provider,
			Name:           admin.DisplayName(in),
			Description:    in.Description,
			Connected:      in.Connected,
			ConnectedSince: admin.ConnectedSince(in),
			MerchantID:     in.MerchantID,
			APIKey:         in.Provider == admin.ToastProvider,
		})
	}
	c.render(w, "integrations", http.StatusOK, page)
}

func (c *Console) handleConnect(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	provider := r.PathValue("provider")

	authURL, err := cs.api.ConnectIntegration(r.Context(), provider)
	switch {
	case errors.Is(err, admin.ErrAPIKeyRequired):
		http.Redirect(w, r, "/admin/integrations?toast=1", http.StatusSeeOther)
		return
	case err != nil:
		cs.setFlash(errorText(err, "Failed to connect. Please try again."), true)
		http.Redirect(w, r, "/admin/integrations", http.StatusSeeOther)
		return
	}

	data := c.basePage(w, r, "Connecting", "integrations")
	c.render(w, "connecting", http.StatusOK, connectingData{
		pageData:     data,
		Provider:     provider,
		Name:         admin.DisplayName(backend.Integration{Provider: provider}),
		AuthURL:      authURL,
		PollMillis:   c.cfg.ConnectPollInterval.Milliseconds(),
		RefreshDelay: c.cfg.ConnectRefreshDelay.Milliseconds(),
	})
}

func (c *Console) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	provider := r.PathValue("provider")

	if err := cs.api.DisconnectIntegration(r.Context(), provider); err != nil {
		cs.setFlash(errorText(err, "Failed to disconnect. Please try again."), true)
	} else {
		cs.setFlash(admin.DisplayName(backend.Integration{Provider: provider})+" disconnected", false)
	}
	http.Redirect(w, r, "/admin/integrations", http.StatusSeeOther)
}

func (c *Console) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	provider := r.PathValue("provider")

	if err := cs.api.TestIntegration(r.Context(), provider); err != nil {
		cs.setFlash(errorText(err, "Connection test failed."), true)
	} else {
		cs.setFlash(admin.DisplayName(backend.Integration{Provider: provider})+" connection is working", false)
	}
	http.Redirect(w, r, "/admin/integrations", http.StatusSeeOther)
}

func (c *Console) handleToastKey(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)

	err := cs.api.SaveToastAPIKey(r.Context(), r.FormValue("api_key"), strings.TrimSpace(r.FormValue("restaurant_guid")))
	if err != nil {
		cs.setFlash(errorText(err, "Failed to save API key. Please try again."), true)
		http.Redirect(w, r, "/admin/integrations?toast=1", http.StatusSeeOther)
		return
	}
	cs.setFlash("Toast connected", false)
	http.Redirect(w, r, "/admin/integrations", http.StatusSeeOther)
}

// Chat

func (c *Console) handleChatPage(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Chat", "chat")
	page := chatData{pageData: data}

	if err := cs.chat.Load(r.Context()); err != nil {
		if errors.Is(err, tenant.ErrNoTenant) {
			page.Error = msgNoTenant
		} else {
			page.Error = "Failed to load conversation history."
		}
	}
	page.Messages = chatRows(cs.chat.Messages())
	c.render(w, "chat", http.StatusOK, page)
}

// handleChatSend renders the transcript directly so local error replies
// stay visible.
func (c *Console) handleChatSend(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)
	data := c.basePage(w, r, "Chat", "chat")
	page := chatData{pageData: data}

	if !cs.chat.Send(r.Context(), r.FormValue("message")) && cs.chat.Sending() {
		page.Error = "Please wait for the current reply."
	}
	page.Messages = chatRows(cs.chat.Messages())
	page.Sending = cs.chat.Sending()
	c.render(w, "chat", http.StatusOK, page)
}
