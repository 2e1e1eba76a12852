// ABOUTME: Root command and per-run wiring for posible-admin
// ABOUTME: Builds the cookie jar, backend client, session store and tenant context before each command

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/posible/posible-admin/internal/admin"
	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/config"
	"github.com/posible/posible-admin/internal/guard"
	"github.com/posible/posible-admin/internal/logging"
	"github.com/posible/posible-admin/internal/session"
	"github.com/posible/posible-admin/internal/store"
	"github.com/posible/posible-admin/internal/tenant"
)

// protectedAnnotation marks commands that need an authenticated session.
const protectedAnnotation = "posible/protected"

var errNotLoggedIn = errors.New("not logged in")

// app is the state of one posible-admin invocation.
type app struct {
	cfgFile string
	noColor bool
	verbose bool

	cfg     *config.CLIConfig
	logger  *slog.Logger
	jar     *store.SQLiteStore
	session *session.Store
	tenant  *tenant.Context
	api     *admin.API
	out     *printer
	lines   *bufio.Reader

	// newWindow returns the window an OAuth connect opens.
	newWindow    func(cmd *cobra.Command) admin.Window
	// pollInterval and refreshDelay override the connector timings when set.
	pollInterval time.Duration
	refreshDelay time.Duration
	// readPassword prompts for a password when --password is not given.
	readPassword func(cmd *cobra.Command) (string, error)
}

func newApp() *app {
	a := &app{}
	a.readPassword = a.promptPassword
	a.newWindow = func(cmd *cobra.Command) admin.Window {
		return newBrowserWindow(cmd.ErrOrStderr(), func() error {
			_, err := a.readLine(cmd, "")
			return err
		})
	}
	return a
}

// run executes args and releases the cookie database afterwards.
func (a *app) run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.jar != nil {
		if cerr := a.jar.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing cookie store: %w", cerr)
		}
		a.jar = nil
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "posible-admin",
		Short: "Admin console for the Posible backend",
		Long: `posible-admin manages a Posible account from the terminal.

Log in once; the session cookie is kept in a local database so later
commands reuse it until you log out or the backend expires it.

Example usage:
  posible-admin login --email you@example.com
  posible-admin users list
  posible-admin schedules add --request "Daily sales" --to +15550001111 --days mon,fri --hour 9
  posible-admin chat "How many orders today?"`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is "+config.DefaultCLIPath()+")")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log backend requests")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.dashboardCmd(),
		a.usersCmd(),
		a.schedulesCmd(),
		a.uploadCmd(),
		a.integrationsCmd(),
		a.chatCmd(),
		a.historyCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no config or session needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// protected marks cmd as needing a session.
func protected(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[protectedAnnotation] = "true"
	return cmd
}

// setup loads config and wires the session for the command about to run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultCLIPath()
	}
	cfg, err := config.LoadCLI(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	a.logger = logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	slog.SetDefault(a.logger)
	a.out = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !a.noColor)

	policy, err := cfg.Tenant.Policy()
	if err != nil {
		return fmt.Errorf("tenant policy: %w", err)
	}

	jar, err := store.NewSQLiteStore(cfg.Session.CookieDB)
	if err != nil {
		return fmt.Errorf("opening cookie store: %w", err)
	}
	a.jar = jar

	client, err := backend.New(cfg.Backend.BaseURL,
		backend.WithJar(jar),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	a.session = session.NewStore(client, a.logger)
	a.tenant = tenant.New(a.session, policy)
	a.api = admin.New(client, a.tenant, a.logger)

	if cmd.Annotations[protectedAnnotation] == "true" {
		return a.requireSession(cmd)
	}
	return nil
}

// requireSession checks the stored session and refuses to continue
// without an authenticated one.
func (a *app) requireSession(cmd *cobra.Command) error {
	state := a.session.CheckSession(cmd.Context())
	outcome := guard.Decide(state, cmd.CommandPath())

	switch outcome.Decision {
	case guard.Allow:
		return nil
	case guard.Wait:
		return errors.New("session check did not finish, try again")
	default:
		return fmt.Errorf("%w: %q needs a session, run 'posible-admin login' first", errNotLoggedIn, outcome.From)
	}
}

// readLine reads one line of stdin, shared across prompts.
func (a *app) readLine(cmd *cobra.Command, prompt string) (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(cmd.InOrStdin())
	}
	if prompt != "" {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe turns precondition and backend errors into CLI error text.
func describe(err error, fallback string) error {
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		return errors.New("database name not available, run 'posible-admin login' again")
	case errors.Is(err, admin.ErrNotCSV),
		errors.Is(err, admin.ErrUserIncomplete),
		errors.Is(err, admin.ErrEmptyQuery),
		errors.Is(err, admin.ErrAPIKeyEmpty):
		return err
	}
	return errors.New(backend.UserMessage(err, fallback))
}
