package stub_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riberry/internal/api"
	"riberry/internal/session"
	"riberry/internal/store"
	"riberry/internal/stub"
)

func newStubClient(t *testing.T) (*api.Client, *session.MemoryStore) {
	t.Helper()
	handler, err := stub.New(stub.Config{JWTSecret: "test-secret"})
	if err != nil {
		t.Fatalf("build stub: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	creds := session.NewMemoryStore()
	return api.New(srv.URL, creds), creds
}

func login(t *testing.T, client *api.Client, creds *session.MemoryStore) *store.UserStore {
	t.Helper()
	users := store.NewUserStore(client, creds)
	if err := users.Login(context.Background(), "demo", "demo"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return users
}

func TestLoginFlow(t *testing.T) {
	client, creds := newStubClient(t)
	users := store.NewUserStore(client, creds)
	ctx := context.Background()

	// Bad credentials ride the envelope and persist nothing.
	if err := users.Login(ctx, "demo", "wrong"); err == nil {
		t.Fatal("bad login succeeded")
	}
	if tok, _ := creds.Get(session.TokenName); tok != "" {
		t.Fatalf("token persisted after failed login: %q", tok)
	}

	if err := users.Login(ctx, "demo", "demo"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !users.LoggedIn() {
		t.Fatal("not logged in")
	}
	u := users.User()
	if u.UserName != "demo" || u.Details == nil {
		t.Fatalf("profile = %+v", u)
	}
	// The issued token is a JWT with a future expiry.
	tok, _ := creds.Get(session.TokenName)
	if session.TokenExpired(tok, time.Now()) {
		t.Fatal("freshly issued token already expired")
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	client, _ := newStubClient(t)
	_, err := client.Forms(context.Background())
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.StatusCode != 401 {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
}

func TestExpandPruning(t *testing.T) {
	client, creds := newStubClient(t)
	login(t, client, creds)
	ctx := context.Background()

	// Without the expansion the relation is absent, not an error.
	env, err := client.SelfProfile(ctx)
	if err != nil || env.Err() != nil {
		t.Fatalf("self: %v, %v", err, env.Err())
	}
	if strings.Contains(string(env.Data), "details") {
		t.Fatalf("unexpanded details present: %s", env.Data)
	}

	env, err = client.SelfProfile(ctx, "details")
	if err != nil || env.Err() != nil {
		t.Fatalf("self with expand: %v, %v", err, env.Err())
	}
	if !strings.Contains(string(env.Data), "department") {
		t.Fatalf("expanded details missing: %s", env.Data)
	}
}

func TestDashboardAgainstStub(t *testing.T) {
	client, creds := newStubClient(t)
	login(t, client, creds)
	ds := store.NewDashboardStore(client, 0)
	if err := ds.Load(context.Background()); err != nil {
		t.Fatalf("dashboard load: %v", err)
	}
	forms := ds.Forms()
	if len(forms) != 1 {
		t.Fatalf("forms = %+v", forms)
	}
	f := forms[0]
	if f.Interface == nil || f.Instance == nil || f.Instance.Application == nil || f.Instance.Heartbeat == nil {
		t.Fatalf("dashboard expansions missing: %+v", f)
	}
	if sum := ds.Summary(); sum.Queued != 0 || sum.Received != 0 {
		t.Fatalf("fresh summary = %+v", sum)
	}
}

func TestCreateJobRoundTrip(t *testing.T) {
	client, creds := newStubClient(t)
	login(t, client, creds)
	ctx := context.Background()

	cs := store.NewCreateJobStore(client)
	if err := cs.Setup(ctx, "1"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	iface := cs.Form().Interface
	if iface == nil || len(iface.InputValues) == 0 || len(iface.InputFiles) == 0 {
		t.Fatalf("interface definition not expanded: %+v", iface)
	}
	if len(iface.InputValues[0].Enumerations) == 0 {
		t.Fatalf("enumerations not expanded: %+v", iface.InputValues[0])
	}

	err := cs.Submit(ctx, store.Submission{
		Name:       "first job",
		Values:     map[string]any{"greeting": "hey"},
		Files:      map[string]api.JobFile{"names file": {FileName: "names.txt", Content: strings.NewReader("alice")}},
		ExecuteNow: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The dashboard picks up the queued execution and the summary bump.
	ds := store.NewDashboardStore(client, 0)
	if err := ds.Load(ctx); err != nil {
		t.Fatalf("dashboard load: %v", err)
	}
	if sum := ds.Summary(); sum.Queued != 1 {
		t.Fatalf("summary after submit = %+v", sum)
	}
	execs := ds.Executions()
	if len(execs) != 1 || execs[0].Job == nil || execs[0].Job.Name != "first job" {
		t.Fatalf("executions = %+v", execs)
	}

	// Form detail shows the job with its creator expanded.
	fs := store.NewFormStore(client, time.Second)
	if err := fs.Load(ctx, "1"); err != nil {
		t.Fatalf("form load: %v", err)
	}
	jobs := fs.Form().Jobs
	if len(jobs) != 1 || jobs[0].Creator == nil || jobs[0].Creator.Details == nil {
		t.Fatalf("form jobs = %+v", jobs)
	}
}
