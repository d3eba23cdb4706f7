package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/gatehouse/internal/bootstrap"
	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/ports"
	"github.com/target/gatehouse/internal/service"
)

const (
	checkKey   = "healthcheck.marker"
	checkValue = "ok"
)

type healthcheckOptions struct {
	Timeout time.Duration
}

func parseHealthcheckFlags(args []string) (healthcheckOptions, error) {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := healthcheckOptions{Timeout: defaultHealthcheckTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultHealthcheckTimeout, "Maximum duration for all checks")
	if err := fs.Parse(args); err != nil {
		return healthcheckOptions{}, err
	}
	if opts.Timeout <= 0 {
		return healthcheckOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runHealthcheck(cmdCtx *commandContext, args []string) error {
	opts, err := parseHealthcheckFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	cfg := cmdCtx.Config
	store, err := bootstrap.BuildSessionStore(ctx, bootstrap.SessionStoreConfig{Config: &cfg, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("session store close failed", "error", closeErr)
		}
	}()

	sessions, err := bootstrap.NewSessionManager(cfg.Session, store.Backend, cmdCtx.Logger, nil)
	if err != nil {
		return err
	}
	chain, err := bootstrap.BuildIdentityChain(bootstrap.AuthConfig{Auth: cfg.Auth, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}

	results := runChecks(ctx, healthDeps{Sessions: sessions, Backend: store.Backend, Identity: chain})
	if err := printCheckResults(cmdCtx.Out, results); err != nil {
		return err
	}
	if n := failedChecks(results); n > 0 {
		return fmt.Errorf("%d of %d checks failed", n, len(results))
	}
	return nil
}

type healthDeps struct {
	Sessions *service.SessionManager
	Backend  ports.SessionBackend
	Identity *service.IdentityChain
}

type checkResult struct {
	Name   string
	Detail string
	Err    error
}

// checkOrigin is the identity resolvers' view of the admin process.
var checkOrigin = ports.Origin{Host: "gatehouse-admin", RemoteAddr: "127.0.0.1:0"}

// cookieJar is the cookie transport for the simulated request. Cookies the
// session sets are kept and read back like a browser would.
type cookieJar struct {
	cookies map[string]*http.Cookie
}

var _ ports.CookieTransport = (*cookieJar)(nil)

func newCookieJar() *cookieJar {
	return &cookieJar{cookies: map[string]*http.Cookie{}}
}

func (j *cookieJar) HeadersSent() bool { return false }

func (j *cookieJar) Cookie(name string) (string, bool) {
	c, ok := j.cookies[name]
	if !ok || c.MaxAge < 0 {
		return "", false
	}
	return c.Value, true
}

func (j *cookieJar) SetCookie(c *http.Cookie) { j.cookies[c.Name] = c }

func (j *cookieJar) IsSecure() bool { return false }

// last returns the most recent cookie set under name, expired or not.
func (j *cookieJar) last(name string) (*http.Cookie, bool) {
	c, ok := j.cookies[name]
	return c, ok
}

// checkRun carries the state shared by consecutive checks over one session.
type checkRun struct {
	jar     *cookieJar
	session ports.Session
	flash   *service.FlashBag
	csrf    ports.CSRFTokenManager
	deps    healthDeps
}

type checkFn func(ctx context.Context, run *checkRun) (string, error)

// runChecks drives one simulated health request through the session stack.
// Checks run in order and later checks depend on earlier ones.
func runChecks(ctx context.Context, deps healthDeps) []checkResult {
	jar := newCookieJar()
	sess := service.NewSessionFor(service.ContextHealth, deps.Sessions, jar)
	run := &checkRun{
		jar:     jar,
		session: sess,
		flash:   service.NewFlashBag(sess),
		csrf:    service.NewCSRFManager(service.ContextHealth, sess),
		deps:    deps,
	}
	defer func() { _ = sess.Close(ctx) }()

	checks := []struct {
		name string
		fn   checkFn
	}{
		{"session.start", checkStart},
		{"session.set_get", checkSetGet},
		{"session.remove", checkRemove},
		{"session.clear", checkClear},
		{"flash.consume", checkFlash},
		{"csrf.token", checkCSRFToken},
		{"csrf.rotate", checkCSRFRotate},
		{"auth.resolve", checkIdentity},
		{"session.regenerate", checkRegenerate},
		{"session.destroy", checkDestroy},
	}

	results := make([]checkResult, 0, len(checks))
	failed := false
	for _, c := range checks {
		if failed {
			results = append(results, checkResult{Name: c.name, Err: errSkipped})
			continue
		}
		detail, err := c.fn(ctx, run)
		results = append(results, checkResult{Name: c.name, Detail: detail, Err: err})
		failed = err != nil
	}
	return results
}

var errSkipped = errors.New("skipped after earlier failure")

func checkStart(ctx context.Context, run *checkRun) (string, error) {
	if err := run.session.Start(ctx); err != nil {
		return "", err
	}
	if run.session.ID() == "" {
		return "", errors.New("started session has no id")
	}
	return "id " + service.Fingerprint(run.session.ID()), nil
}

func checkSetGet(ctx context.Context, run *checkRun) (string, error) {
	if err := run.session.Set(ctx, checkKey, checkValue); err != nil {
		return "", err
	}
	got, err := run.session.Get(checkKey)
	if err != nil {
		return "", err
	}
	if got != checkValue {
		return "", fmt.Errorf("read back %v, want %q", got, checkValue)
	}
	return "value round-tripped", nil
}

func checkRemove(ctx context.Context, run *checkRun) (string, error) {
	if err := run.session.Remove(ctx, checkKey); err != nil {
		return "", err
	}
	has, err := run.session.Has(checkKey)
	if err != nil {
		return "", err
	}
	if has {
		return "", errors.New("key still present after remove")
	}
	return "key removed", nil
}

func checkClear(ctx context.Context, run *checkRun) (string, error) {
	if err := run.session.Set(ctx, checkKey, checkValue); err != nil {
		return "", err
	}
	if err := run.session.Clear(ctx); err != nil {
		return "", err
	}
	all, err := run.session.All()
	if err != nil {
		return "", err
	}
	if len(all) != 0 {
		return "", fmt.Errorf("%d keys left after clear", len(all))
	}
	return "data cleared", nil
}

func checkFlash(ctx context.Context, run *checkRun) (string, error) {
	if err := run.flash.Set(ctx, "notice", checkValue); err != nil {
		return "", err
	}
	v, ok, err := run.flash.Consume(ctx, "notice")
	if err != nil {
		return "", err
	}
	if !ok || v != checkValue {
		return "", fmt.Errorf("consumed %v (present=%t)", v, ok)
	}
	if run.flash.Has("notice") {
		return "", errors.New("flash survived consume")
	}
	return "read once", nil
}

func checkCSRFToken(ctx context.Context, run *checkRun) (string, error) {
	tok, err := run.csrf.Token(ctx)
	if err != nil {
		return "", err
	}
	if !run.csrf.IsValid(tok) {
		return "", errors.New("issued token does not validate")
	}
	if run.csrf.IsValid("not-a-token") {
		return "", errors.New("bogus token validated")
	}
	return fmt.Sprintf("%d-char token", len(tok)), nil
}

func checkCSRFRotate(ctx context.Context, run *checkRun) (string, error) {
	tok, err := run.csrf.Token(ctx)
	if err != nil {
		return "", err
	}
	ok, err := run.csrf.ValidateAndRegenerate(ctx, tok)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("current token rejected")
	}
	if run.csrf.IsValid(tok) {
		return "", errors.New("token still valid after rotation")
	}
	return "rotated after use", nil
}

func checkIdentity(ctx context.Context, run *checkRun) (string, error) {
	if run.deps.Identity == nil {
		return "", errors.New("no identity chain")
	}
	auth := run.deps.Identity.ResolveContext(ctx, ports.ResolveInput{
		Origin:  checkOrigin,
		Session: run.session,
	})
	id := auth.Identity()
	return fmt.Sprintf("role=%s authenticated=%t id=%q name=%q", id.Role, id.Authenticated, id.ID, id.Name), nil
}

func checkRegenerate(ctx context.Context, run *checkRun) (string, error) {
	if err := run.session.Set(ctx, checkKey, checkValue); err != nil {
		return "", err
	}
	before := run.session.ID()
	if err := run.session.Regenerate(ctx); err != nil {
		return "", err
	}
	if run.session.ID() == before {
		return "", errors.New("id unchanged")
	}
	if got, err := run.session.Get(checkKey); err != nil || got != checkValue {
		return "", fmt.Errorf("data lost on regenerate: %v (err=%v)", got, err)
	}
	if _, err := run.deps.Backend.Load(ctx, before); !errors.Is(err, domainsession.ErrNotFound) {
		return "", fmt.Errorf("previous id still loadable: %v", err)
	}
	if got, ok := run.jar.Cookie(run.deps.Sessions.CookieName()); !ok || got != run.session.ID() {
		return "", errors.New("cookie does not carry the regenerated id")
	}
	return "id rotated, data kept", nil
}

func checkDestroy(ctx context.Context, run *checkRun) (string, error) {
	id := run.session.ID()
	if err := run.session.Destroy(ctx); err != nil {
		return "", err
	}
	if run.session.Started() {
		return "", errors.New("session still active")
	}
	if _, err := run.deps.Backend.Load(ctx, id); !errors.Is(err, domainsession.ErrNotFound) {
		return "", fmt.Errorf("record still loadable: %v", err)
	}
	if c, ok := run.jar.last(run.deps.Sessions.CookieName()); !ok || c.MaxAge >= 0 {
		return "", errors.New("session cookie not expired")
	}
	return "record deleted", nil
}

func failedChecks(results []checkResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func printCheckResults(w io.Writer, results []checkResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "CHECK\tSTATUS\tDETAIL\n"); err != nil {
		return err
	}
	for _, r := range results {
		status, detail := "ok", r.Detail
		if r.Err != nil {
			status, detail = "FAIL", r.Err.Error()
			if errors.Is(r.Err, errSkipped) {
				status = "SKIP"
			}
		}
		if err := writef(tw, "%s\t%s\t%s\n", r.Name, status, detail); err != nil {
			return err
		}
	}
	return tw.Flush()
}
