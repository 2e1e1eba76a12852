// ABOUTME: Tenant-scoped facade over the backend client
// ABOUTME: Resolves db_name and twilio_number before every request

package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/tenant"
)

var (
	// ErrNotCSV rejects an upload whose file name does not end in .csv.
	ErrNotCSV = errors.New("please select a CSV file")
	// ErrAPIKeyRequired is returned when connecting Toast through OAuth.
	ErrAPIKeyRequired = errors.New("toast is connected with an API key")
	// ErrUserIncomplete rejects a new user without a name or phone number.
	ErrUserIncomplete = errors.New("name and phone number are required")
	// ErrEmptyQuery rejects a blank chat message or schedule request.
	ErrEmptyQuery = errors.New("query is required")
	// ErrAPIKeyEmpty rejects saving a blank Toast API key.
	ErrAPIKeyEmpty = errors.New("API key is required")
)

// ToastProvider is the integration configured by API key instead of OAuth.
const ToastProvider = "toast"

// Backend is the set of tenant-scoped backend calls. *backend.Client
// satisfies it.
type Backend interface {
	ListUsers(ctx context.Context, dbName string) ([]backend.User, error)
	CreateUser(ctx context.Context, dbName string, user backend.NewUser) error
	DeleteUser(ctx context.Context, dbName, phoneNumber string) error

	ListSchedules(ctx context.Context, dbName, phoneNumber string) ([]backend.Schedule, error)
	CreateSchedule(ctx context.Context, dbName string, req backend.ScheduleRequest) error
	EditSchedule(ctx context.Context, dbName string, id int64, req backend.ScheduleRequest) error
	DeleteSchedule(ctx context.Context, dbName string, id int64, toNumber string) error

	SendMessage(ctx context.Context, dbName, query, fromNumber string) (string, error)
	ConversationHistory(ctx context.Context, dbName, phoneNumber string) ([]backend.HistoryEntry, error)

	UploadCSV(ctx context.Context, dbName, filename string, file io.Reader, primaryKey string) (*backend.UploadResult, error)

	ListIntegrations(ctx context.Context, dbName string) ([]backend.Integration, error)
	ConnectIntegration(ctx context.Context, dbName, provider string) (string, error)
	DisconnectIntegration(ctx context.Context, dbName, provider string) error
	TestIntegration(ctx context.Context, dbName, provider string) error
	SaveToastAPIKey(ctx context.Context, dbName, apiKey, restaurantGUID string) error
}

// API issues tenant-scoped requests on behalf of one session.
type API struct {
	client Backend
	tenant *tenant.Context
	logger *slog.Logger
}

// New returns an API scoped by tc.
func New(client Backend, tc *tenant.Context, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{client: client, tenant: tc, logger: logger.With("component", "admin")}
}

// Tenant returns the tenant context the API resolves against.
func (a *API) Tenant() *tenant.Context {
	return a.tenant
}

func (a *API) dbName() (string, error) {
	db, err := a.tenant.DBName()
	if err != nil {
		a.logger.Warn("tenant-scoped call without database name", "error", err)
		return "", err
	}
	return db, nil
}

// dbNameBefore resolves the database name for a path where next follows
// it. An empty name is only usable as the last path segment, so it is
// refused when next is set.
func (a *API) dbNameBefore(next string) (string, error) {
	db, err := a.dbName()
	if err != nil {
		return "", err
	}
	if db == "" && next != "" {
		a.logger.Warn("refusing addressed call without database name", "next", next)
		return "", tenant.ErrNoDBName
	}
	return db, nil
}

// scoped resolves both tenant values, for calls addressed by routing number.
func (a *API) scoped() (db, phone string, err error) {
	if db, err = a.dbName(); err != nil {
		return "", "", err
	}
	if phone, err = a.tenant.TwilioNumber(); err != nil {
		return "", "", err
	}
	return db, phone, nil
}

// Users lists the tenant's users.
func (a *API) Users(ctx context.Context) ([]backend.User, error) {
	db, err := a.dbName()
	if err != nil {
		return nil, err
	}
	return a.client.ListUsers(ctx, db)
}

// CreateUser adds a user. Name and phone number are required.
func (a *API) CreateUser(ctx context.Context, user backend.NewUser) error {
	user.Name = strings.TrimSpace(user.Name)
	user.PhoneNumber = strings.TrimSpace(user.PhoneNumber)
	if user.Name == "" || user.PhoneNumber == "" {
		return ErrUserIncomplete
	}
	db, err := a.dbName()
	if err != nil {
		return err
	}
	if err := a.client.CreateUser(ctx, db, user); err != nil {
		return err
	}
	a.logger.Info("user created", "db_name", db, "phone", user.PhoneNumber)
	return nil
}

// DeleteUser removes the user with the given phone number.
func (a *API) DeleteUser(ctx context.Context, phoneNumber string) error {
	db, err := a.dbNameBefore(phoneNumber)
	if err != nil {
		return err
	}
	if err := a.client.DeleteUser(ctx, db, phoneNumber); err != nil {
		return err
	}
	a.logger.Info("user deleted", "db_name", db, "phone", phoneNumber)
	return nil
}

// Schedules lists scheduled reports, optionally only those sent to phoneNumber.
func (a *API) Schedules(ctx context.Context, phoneNumber string) ([]backend.Schedule, error) {
	db, err := a.dbNameBefore(phoneNumber)
	if err != nil {
		return nil, err
	}
	return a.client.ListSchedules(ctx, db, phoneNumber)
}

// CreateSchedule adds a scheduled report. An empty TwilioNumber is filled
// from the tenant context.
func (a *API) CreateSchedule(ctx context.Context, req backend.ScheduleRequest) error {
	if strings.TrimSpace(req.Request) == "" {
		return ErrEmptyQuery
	}
	db, err := a.dbName()
	if err != nil {
		return err
	}
	if req.TwilioNumber == "" {
		tel, err := a.tenant.TwilioNumber()
		if err != nil {
			return err
		}
		req.TwilioNumber = tel
	}
	if err := a.client.CreateSchedule(ctx, db, req); err != nil {
		return err
	}
	a.logger.Info("schedule created", "db_name", db, "to_number", req.ToNumber, "days", req.Days, "hour", req.Hour)
	return nil
}

// EditSchedule replaces a scheduled report.
func (a *API) EditSchedule(ctx context.Context, id int64, req backend.ScheduleRequest) error {
	if strings.TrimSpace(req.Request) == "" {
		return ErrEmptyQuery
	}
	db, err := a.dbNameBefore(strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	return a.client.EditSchedule(ctx, db, id, req)
}

// DeleteSchedule removes a scheduled report sent to toNumber.
func (a *API) DeleteSchedule(ctx context.Context, id int64, toNumber string) error {
	db, err := a.dbNameBefore(strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if err := a.client.DeleteSchedule(ctx, db, id, toNumber); err != nil {
		return err
	}
	a.logger.Info("schedule deleted", "db_name", db, "id", id)
	return nil
}

// SendMessage sends query to the agent as the tenant routing number and
// returns the reply.
func (a *API) SendMessage(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	db, phone, err := a.scoped()
	if err != nil {
		return "", err
	}
	return a.client.SendMessage(ctx, db, query, phone)
}

// ConversationHistory returns the tenant routing number's history, newest first.
func (a *API) ConversationHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	phone, err := a.tenant.TwilioNumber()
	if err != nil {
		return nil, err
	}
	db, err := a.dbNameBefore(phone)
	if err != nil {
		return nil, err
	}
	return a.client.ConversationHistory(ctx, db, phone)
}

// UploadCSV imports a CSV file. primaryKey is sent only when non-empty.
func (a *API) UploadCSV(ctx context.Context, filename string, file io.Reader, primaryKey string) (*backend.UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, ErrNotCSV
	}
	db, err := a.dbName()
	if err != nil {
		return nil, err
	}
	res, err := a.client.UploadCSV(ctx, db, filepath.Base(filename), file, strings.TrimSpace(primaryKey))
	if err != nil {
		return nil, err
	}
	a.logger.Info("csv uploaded", "db_name", db, "file", filepath.Base(filename))
	return res, nil
}

// Integrations lists the POS integrations and their connection state.
func (a *API) Integrations(ctx context.Context) ([]backend.Integration, error) {
	db, err := a.dbName()
	if err != nil {
		return nil, err
	}
	return a.client.ListIntegrations(ctx, db)
}

// ConnectIntegration starts an OAuth connection and returns the provider
// authorization URL.
func (a *API) ConnectIntegration(ctx context.Context, provider string) (string, error) {
	if provider == ToastProvider {
		return "", ErrAPIKeyRequired
	}
	db, err := a.dbNameBefore(provider)
	if err != nil {
		return "", err
	}
	return a.client.ConnectIntegration(ctx, db, provider)
}

// DisconnectIntegration removes a provider connection.
func (a *API) DisconnectIntegration(ctx context.Context, provider string) error {
	db, err := a.dbNameBefore(provider)
	if err != nil {
		return err
	}
	if err := a.client.DisconnectIntegration(ctx, db, provider); err != nil {
		return err
	}
	a.logger.Info("integration disconnected", "db_name", db, "provider", provider)
	return nil
}

// TestIntegration checks that a provider connection works.
func (a *API) TestIntegration(ctx context.Context, provider string) error {
	db, err := a.dbNameBefore(provider)
	if err != nil {
		return err
	}
	return a.client.TestIntegration(ctx, db, provider)
}

// SaveToastAPIKey connects Toast with an API key. restaurantGUID is optional.
func (a *API) SaveToastAPIKey(ctx context.Context, apiKey, restaurantGUID string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrAPIKeyEmpty
	}
	db, err := a.dbNameBefore(ToastProvider)
	if err != nil {
		return err
	}
	if err := a.client.SaveToastAPIKey(ctx, db, apiKey, strings.TrimSpace(restaurantGUID)); err != nil {
		return err
	}
	a.logger.Info("toast api key saved", "db_name", db)
	return nil
}
