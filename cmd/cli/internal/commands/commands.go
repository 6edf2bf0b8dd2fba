package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wolfeidau/classdesk/internal/auth"
	"github.com/wolfeidau/classdesk/internal/client"
	"github.com/wolfeidau/classdesk/internal/config"
	"github.com/wolfeidau/classdesk/internal/notify"
	"github.com/wolfeidau/classdesk/internal/router"
	"github.com/wolfeidau/classdesk/internal/session"
	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal   // mockable

	errNotLoggedIn = errors.New("not logged in, run 'classdesk login' first")
)

type Globals struct {
	Debug    bool
	Version  string
	StateDir string
	Origin   string
	DevPort  int

	// Out and In default to stdout and stdin.
	Out io.Writer
	In  io.Reader

	lines *bufio.Reader
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) in() io.Reader {
	if g.In == nil {
		return os.Stdin
	}
	return g.In
}

// App is the client wired together for one command invocation.
type App struct {
	Config    *config.Config
	Session   *session.Store
	Navigator *router.Navigator
	Clients   *client.Clients
	Auth      *auth.Service
}

func newApp(globals *Globals) (*App, error) {
	stateDir := globals.StateDir
	if stateDir == "" {
		dir, err := session.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}

	storage, err := session.NewFileStorage(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}

	cfg, err := config.Load(storage.Dir())
	if err != nil {
		return nil, err
	}
	if globals.Origin != "" {
		cfg.Origin = globals.Origin
	}
	if globals.DevPort != 0 {
		cfg.DevPort = globals.DevPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	notifier := notify.NewWriter(globals.out())
	store := session.New(storage)
	routes := router.DefaultRoutes()
	navigator := router.NewNavigator(routes, router.NewGuard(routes, store, notifier))

	clients, err := client.NewClients(cfg.ClientConfig(globals.Debug), client.Deps{
		Session:   store,
		Navigator: navigator,
		Notifier:  notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create clients: %w", err)
	}

	return &App{
		Config:    cfg,
		Session:   store,
		Navigator: navigator,
		Clients:   clients,
		Auth:      auth.New(clients.API, store),
	}, nil
}

// readSecret prompts without echo on a terminal, otherwise reads one line from In.
func readSecret(globals *Globals, prompt string) (string, error) {
	if f, ok := globals.in().(*os.File); ok && isTerminalFunc(int(f.Fd())) {
		fmt.Fprint(globals.out(), prompt)
		pwd, err := readPasswordFunc(int(f.Fd()))
		fmt.Fprintln(globals.out())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pwd), nil
	}
	return readLine(globals)
}

// readLine reads one line from In. The reader is shared so consecutive prompts see
// consecutive lines.
func readLine(globals *Globals) (string, error) {
	if globals.lines == nil {
		globals.lines = bufio.NewReader(globals.in())
	}
	line, err := globals.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
