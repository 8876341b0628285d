package stub

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// World is the stub backend's in-memory state: one seeded
// application/instance/interface/form and the jobs submitted against it.
type World struct {
	mu sync.Mutex

	Users    map[string]string // username -> password
	Jobs     []job
	Summary  map[string]int
	nowFn    func() time.Time
	nextExec int
}

type job struct {
	ID        string
	Name      string
	Created   string
	Creator   string
	Execution *execution
}

type execution struct {
	ID     int
	Status string
}

// NewWorld seeds the fixture state.
func NewWorld() *World {
	return &World{
		Users: map[string]string{"demo": "demo"},
		Summary: map[string]int{
			"RECEIVED": 0, "READY": 0, "QUEUED": 0,
			"ACTIVE": 0, "SUCCESS": 0, "FAILURE": 0,
		},
		nowFn:    time.Now,
		nextExec: 1,
	}
}

// AddUser registers a login.
func (w *World) AddUser(username, password string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Users[username] = password
}

func (w *World) checkCredentials(username, password string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	pw, ok := w.Users[username]
	return ok && pw == password
}

func (w *World) createJob(name, creator string, executeNow bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := "RECEIVED"
	if executeNow {
		status = "QUEUED"
	}
	j := job{
		ID:      uuid.NewString(),
		Name:    name,
		Created: w.nowFn().UTC().Format(time.RFC3339),
		Creator: creator,
		Execution: &execution{
			ID:     w.nextExec,
			Status: status,
		},
	}
	w.nextExec++
	w.Jobs = append(w.Jobs, j)
	w.Summary[status]++
}

// expansion is the parsed expand query parameter: a set of dot-delimited
// relation paths. Has reports whether a relation should be inlined;
// Sub descends one level.
type expansion map[string]struct{}

func parseExpansion(raw string) expansion {
	e := expansion{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			e[p] = struct{}{}
		}
	}
	return e
}

func (e expansion) Has(field string) bool {
	for p := range e {
		if p == field || strings.HasPrefix(p, field+".") {
			return true
		}
	}
	return false
}

func (e expansion) Sub(field string) expansion {
	sub := expansion{}
	for p := range e {
		if strings.HasPrefix(p, field+".") {
			sub[strings.TrimPrefix(p, field+".")] = struct{}{}
		}
	}
	return sub
}

// Payload builders. Relations appear only when the expansion asks for
// them, mirroring the backend's expand contract.

func (w *World) userPayload(username string, exp expansion) map[string]any {
	u := map[string]any{
		"id":       1,
		"userName": username,
		"groups":   []any{map[string]any{"id": 1, "name": "users"}},
	}
	if exp.Has("details") {
		u["details"] = map[string]any{
			"id":         1,
			"name":       title(username),
			"email":      username + "@example.com",
			"department": "Operations",
		}
	}
	if exp.Has("executions") {
		w.mu.Lock()
		execs := []any{}
		for _, j := range w.Jobs {
			if j.Execution == nil {
				continue
			}
			e := map[string]any{
				"id":     j.Execution.ID,
				"status": j.Execution.Status,
			}
			if exp.Has("executions.job") {
				e["job"] = jobPayload(j, exp.Sub("executions").Sub("job"))
			}
			execs = append(execs, e)
		}
		w.mu.Unlock()
		u["executions"] = execs
	}
	return u
}

func (w *World) formPayload(exp expansion) map[string]any {
	f := map[string]any{"id": 1}
	if exp.Has("interface") {
		f["interface"] = interfacePayload(exp.Sub("interface"))
	}
	if exp.Has("instance") {
		f["instance"] = instancePayload(exp.Sub("instance"))
	}
	if exp.Has("jobs") {
		w.mu.Lock()
		jobs := []any{}
		for _, j := range w.Jobs {
			jobs = append(jobs, jobPayload(j, exp.Sub("jobs")))
		}
		w.mu.Unlock()
		f["jobs"] = jobs
	}
	return f
}

func (w *World) summaryPayload() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.Summary))
	for k, v := range w.Summary {
		out[k] = v
	}
	return out
}

func jobPayload(j job, exp expansion) map[string]any {
	p := map[string]any{
		"id":      j.ID,
		"name":    j.Name,
		"created": j.Created,
	}
	if exp.Has("creator") {
		creator := map[string]any{"id": 1, "userName": j.Creator}
		if exp.Has("creator.details") {
			creator["details"] = map[string]any{
				"id":         1,
				"name":       title(j.Creator),
				"email":      j.Creator + "@example.com",
				"department": "Operations",
			}
		}
		p["creator"] = creator
	}
	if exp.Has("interface") {
		p["interface"] = interfacePayload(exp.Sub("interface"))
	}
	if exp.Has("executions") && j.Execution != nil {
		p["executions"] = []any{map[string]any{
			"id":     j.Execution.ID,
			"status": j.Execution.Status,
		}}
	}
	return p
}

func interfacePayload(exp expansion) map[string]any {
	p := map[string]any{
		"id":           1,
		"name":         "Greeter",
		"internalName": "greeter",
		"version":      1,
		"description":  "Says hello",
	}
	if exp.Has("document") {
		p["document"] = "Submit a name and the greeter greets it."
	}
	if exp.Has("inputFiles") {
		p["inputFiles"] = []any{map[string]any{
			"name":         "names file",
			"type":         "file",
			"internalName": "names_file",
			"required":     false,
		}}
	}
	if exp.Has("inputValues") {
		p["inputValues"] = []any{map[string]any{
			"name":         "greeting",
			"type":         "string",
			"internalName": "greeting",
			"required":     true,
			"default":      "hello",
			"enumerations": []any{"hello", "hi", "hey"},
		}}
	}
	return p
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func instancePayload(exp expansion) map[string]any {
	p := map[string]any{
		"id":           1,
		"name":         "Greeter Prod",
		"internalName": "greeter-prod",
	}
	if exp.Has("heartbeat") {
		now := time.Now().UTC().Format(time.RFC3339)
		p["heartbeat"] = map[string]any{"created": now, "updated": now}
	}
	if exp.Has("application") {
		p["application"] = map[string]any{
			"id":           1,
			"name":         "Greeter App",
			"internalName": "greeter-app",
			"type":         "basic",
		}
	}
	return p
}
