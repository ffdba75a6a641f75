package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"remotefs/internal/config"
	"remotefs/internal/shell"
	"remotefs/internal/shell/shelltest"
)

func testServer(name string) config.ServerConfig {
	return config.ServerConfig{
		Name:     name,
		Host:     name + ".example.com",
		Port:     22,
		User:     "deploy",
		Auth:     config.AuthConfig{Method: "agent"},
		Platform: config.PlatformPOSIX,
	}
}

func shellSpawner(outputs map[string]string) *shelltest.Spawner {
	return &shelltest.Spawner{New: func(_ int, argv []string) *shelltest.Process {
		if argv[0] == "sftp" {
			return shelltest.NewProcess("Connected.\n", shelltest.SFTP("sftp>", outputs))
		}
		return shelltest.NewProcess("$ ", shelltest.Shell("$", outputs))
	}}
}

func newDispatcher(t *testing.T, sp *shelltest.Spawner) *Dispatcher {
	t.Helper()
	d := New(Options{
		Session: shell.Options{
			Timing:          shell.Timing{Poll: 2 * time.Millisecond, QuietCycles: 15},
			ReconnectBudget: 1,
			Spawn:           sp.Spawn,
		},
		ListenAttempts: 10,
		Timeout:        5 * time.Second,
	})
	t.Cleanup(d.Close)
	return d
}

func TestSubmitWithoutWorkers(t *testing.T) {
	d := newDispatcher(t, shellSpawner(nil))
	_, err := d.Submit(context.Background(), ShellCommand(testServer("web1"), "uptime"))
	if !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("Submit error = %v, want ErrNoWorkers", err)
	}
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	d := newDispatcher(t, shellSpawner(nil))
	d.AddWorker(shell.FlavorSSH)
	srv := testServer("web1")

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown flavor", Request{Flavor: "scp", Server: srv, Command: "ls", Marker: "x"}},
		{"no server", Request{Flavor: shell.FlavorSSH, Command: "ls", Marker: "x"}},
		{"no marker", Request{Flavor: shell.FlavorSSH, Server: srv, Command: "ls"}},
		{"multi-line", Request{Flavor: shell.FlavorSSH, Server: srv, Command: "ls\nrm -rf /", Marker: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Submit(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Submit error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestSubmitShellCommand(t *testing.T) {
	sp := shellSpawner(map[string]string{"uname -s": "Linux\n"})
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)

	res, err := d.Submit(context.Background(), ShellCommand(testServer("web1"), "uname -s"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success {
		t.Fatalf("command failed: %v (out %q)", res.Cause, res.Out)
	}
	if got := res.Body(); got != "Linux\n" {
		t.Errorf("Body() = %q, want %q", got, "Linux\n")
	}
	if res.Key == "" || res.Server != "web1" || res.Flavor != shell.FlavorSSH {
		t.Errorf("unexpected result metadata: %+v", res)
	}
}

func TestSubmitEmptyCommandReconnects(t *testing.T) {
	sp := shellSpawner(nil)
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)

	res, err := d.Submit(context.Background(), ShellCommand(testServer("web1"), ""))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success {
		t.Fatalf("reconnect failed: %v", res.Cause)
	}
	if sp.Count() != 1 {
		t.Errorf("spawned %d clients, want 1", sp.Count())
	}
}

func TestSubmitSFTPCommand(t *testing.T) {
	sp := shellSpawner(map[string]string{"pwd": "Remote working directory: /home/deploy\n"})
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSFTP)

	res, err := d.Submit(context.Background(), SFTPCommand(testServer("web1"), "pwd"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success {
		t.Fatalf("command failed: %v", res.Cause)
	}
	if got, want := res.Body(), "Remote working directory: /home/deploy\n"; got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
}

func TestEveryResultDeliveredExactlyOnce(t *testing.T) {
	outputs := make(map[string]string)
	for i := 0; i < 24; i++ {
		outputs[fmt.Sprintf("cat /etc/item%d", i)] = fmt.Sprintf("item %d\n", i)
	}
	d := newDispatcher(t, shellSpawner(outputs))
	for i := 0; i < 3; i++ {
		d.AddWorker(shell.FlavorSSH)
	}

	var (
		mu   sync.Mutex
		keys = make(map[string]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.Submit(context.Background(), ShellCommand(testServer("web1"), fmt.Sprintf("cat /etc/item%d", i)))
			if err != nil {
				t.Errorf("Submit %d: %v", i, err)
				return
			}
			if want := fmt.Sprintf("item %d\n", i); res.Body() != want {
				t.Errorf("result %d body = %q, want %q", i, res.Body(), want)
			}
			mu.Lock()
			keys[res.Key]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(keys) != 24 {
		t.Errorf("got %d distinct result keys, want 24", len(keys))
	}
	for k, n := range keys {
		if n != 1 {
			t.Errorf("key %s delivered %d times", k, n)
		}
	}
}

func TestSubmitAsyncPassesToken(t *testing.T) {
	d := newDispatcher(t, shellSpawner(map[string]string{"hostname": "web1\n"}))
	d.AddWorker(shell.FlavorSSH)

	type step struct{ name string }
	got := make(chan any, 1)
	results := make(chan Result, 1)
	err := d.SubmitAsync(ShellCommand(testServer("web1"), "hostname"), step{"after-hostname"}, func(res Result, token any) {
		results <- res
		got <- token
	})
	if err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}

	select {
	case res := <-results:
		if !res.Success || res.Body() != "web1\n" {
			t.Errorf("result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never called")
	}
	if tok := <-got; tok != (step{"after-hostname"}) {
		t.Errorf("token = %v", tok)
	}
}

func hangingSpawner() *shelltest.Spawner {
	return &shelltest.Spawner{New: func(int, []string) *shelltest.Process {
		var mu sync.Mutex
		hung := false
		return shelltest.NewProcess("$ ", func(line string) (string, string, bool) {
			mu.Lock()
			defer mu.Unlock()
			if strings.HasPrefix(line, "sleep") {
				hung = true
			}
			if hung {
				return "", "", false
			}
			return "$ ", "", false
		})
	}}
}

func TestSubmitAsyncTimeout(t *testing.T) {
	d := newDispatcher(t, hangingSpawner())
	d.AddWorker(shell.FlavorSSH)

	req := ShellCommand(testServer("web1"), "sleep 3600")
	req.Timeout = 150 * time.Millisecond

	calls := make(chan Result, 2)
	if err := d.SubmitAsync(req, nil, func(res Result, _ any) { calls <- res }); err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}
	select {
	case res := <-calls:
		if res.Success {
			t.Fatal("hung command reported success")
		}
		if !errors.Is(res.Cause, shell.ErrTimeout) {
			t.Errorf("Cause = %v, want ErrTimeout", res.Cause)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never called")
	}
	select {
	case res := <-calls:
		t.Errorf("callback called twice, second with %+v", res)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPostDropsResult(t *testing.T) {
	sp := shellSpawner(map[string]string{"rm -f /tmp/x.tgz": ""})
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)
	srv := testServer("web1")

	req := ShellCommand(srv, "rm -f /tmp/x.tgz")
	key, err := d.Post(context.Background(), req)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if key == "" {
		t.Error("Post returned an empty key")
	}

	// The next command runs on the same worker after the posted one.
	res, err := d.Submit(context.Background(), ShellCommand(srv, ""))
	if err != nil || !res.Success {
		t.Fatalf("Submit after Post: %v %v", err, res.Cause)
	}
	if !slices.Contains(sp.Process(0).Lines(), req.Command) {
		t.Errorf("posted command never ran: %q", sp.Process(0).Lines())
	}
}

func TestWorkerRebindsOnServerChange(t *testing.T) {
	sp := shellSpawner(map[string]string{"id -un": "deploy\n"})
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)

	for _, name := range []string{"web1", "web1", "web2"} {
		res, err := d.Submit(context.Background(), ShellCommand(testServer(name), "id -un"))
		if err != nil || !res.Success {
			t.Fatalf("Submit to %s: %v %v", name, err, res.Cause)
		}
	}
	if sp.Count() != 2 {
		t.Fatalf("spawned %d clients, want 2", sp.Count())
	}
	if sp.Process(0).Alive() {
		t.Error("client for web1 still running after switching to web2")
	}
	if dest := sp.Argv(1)[len(sp.Argv(1))-1]; dest != "deploy@web2.example.com" {
		t.Errorf("second client destination = %q", dest)
	}
}

func TestHostKeyUnknownReported(t *testing.T) {
	sp := &shelltest.Spawner{New: func(_ int, argv []string) *shelltest.Process {
		if slices.Contains(argv, "StrictHostKeyChecking=accept-new") {
			return shelltest.NewProcess("$ ", shelltest.Shell("$", map[string]string{"true": ""}))
		}
		return shelltest.NewProcess("The authenticity of host 'web1' can't be established.\n", func(string) (string, string, bool) {
			return "Are you sure you want to continue connecting (yes/no)? ", "", false
		})
	}}
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)
	srv := testServer("web1")

	res, err := d.Submit(context.Background(), ShellCommand(srv, "true"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Success || !res.HostKeyUnknown || !errors.Is(res.Cause, shell.ErrHostKeyUnknown) {
		t.Fatalf("result = %+v, want host key failure", res)
	}

	req := ShellCommand(srv, "true")
	req.AcceptHostKey = true
	res, err = d.Submit(context.Background(), req)
	if err != nil || !res.Success {
		t.Fatalf("Submit with accept: %v %v", err, res.Cause)
	}
}

func waitRunning(t *testing.T, p *pool, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.running.Load() != want {
		if time.Now().After(deadline) {
			t.Fatalf("running workers = %d, want %d", p.running.Load(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRemoveWorkers(t *testing.T) {
	d := newDispatcher(t, shellSpawner(map[string]string{"date +%s": "1760000000\n"}))
	for i := 0; i < 4; i++ {
		if got := d.AddWorker(shell.FlavorSSH); got != i {
			t.Fatalf("AddWorker index = %d, want %d", got, i)
		}
	}
	p := d.pools[shell.FlavorSSH]
	waitRunning(t, p, 4)

	if err := d.RemoveWorkers(context.Background(), shell.FlavorSSH, 3); err != nil {
		t.Fatalf("RemoveWorkers: %v", err)
	}
	if len(p.queue) != 0 {
		t.Errorf("%d kill messages left unconsumed", len(p.queue))
	}
	waitRunning(t, p, 1)
	if d.Workers(shell.FlavorSSH) != 1 {
		t.Errorf("Workers() = %d, want 1", d.Workers(shell.FlavorSSH))
	}

	// The survivor still takes work.
	for i := 0; i < 3; i++ {
		res, err := d.Submit(context.Background(), ShellCommand(testServer("web1"), "date +%s"))
		if err != nil || !res.Success {
			t.Fatalf("Submit after removal: %v %v", err, res.Cause)
		}
	}

	// Indices continue from the survivors.
	if got := d.AddWorker(shell.FlavorSSH); got != 1 {
		t.Errorf("AddWorker after removal = %d, want 1", got)
	}
	waitRunning(t, p, 2)
}

func TestRemoveMoreWorkersThanExist(t *testing.T) {
	d := newDispatcher(t, shellSpawner(nil))
	d.AddWorker(shell.FlavorSFTP)
	d.AddWorker(shell.FlavorSFTP)

	if err := d.RemoveWorkers(context.Background(), shell.FlavorSFTP, 5); err != nil {
		t.Fatalf("RemoveWorkers: %v", err)
	}
	waitRunning(t, d.pools[shell.FlavorSFTP], 0)
	if _, err := d.Submit(context.Background(), SFTPCommand(testServer("web1"), "pwd")); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("Submit error = %v, want ErrNoWorkers", err)
	}
}

func TestRemoveWorkersWaitsForQueuedWork(t *testing.T) {
	sp := shellSpawner(map[string]string{"ls": "a\n"})
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)
	d.AddWorker(shell.FlavorSSH)

	results := make(chan Result, 4)
	for i := 0; i < 4; i++ {
		if err := d.SubmitAsync(ShellCommand(testServer("web1"), "ls"), nil, func(r Result, _ any) { results <- r }); err != nil {
			t.Fatalf("SubmitAsync: %v", err)
		}
	}
	if err := d.RemoveWorkers(context.Background(), shell.FlavorSSH, 2); err != nil {
		t.Fatalf("RemoveWorkers: %v", err)
	}
	for i := 0; i < 4; i++ {
		select {
		case r := <-results:
			if !r.Success {
				t.Errorf("queued command failed: %v", r.Cause)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("queued command never completed")
		}
	}
}

func TestTimedOutCommandDoesNotAnswerNextOne(t *testing.T) {
	sh := shelltest.Shell("$", map[string]string{"ls /a": "A-LISTING\n", "ls /b": "B-LISTING\n"})
	sp := &shelltest.Spawner{New: func(int, []string) *shelltest.Process {
		return shelltest.NewProcess("$ ", func(line string) (string, string, bool) {
			if strings.HasPrefix(line, "ls /a") {
				time.Sleep(300 * time.Millisecond)
			}
			return sh(line)
		})
	}}
	d := newDispatcher(t, sp)
	d.AddWorker(shell.FlavorSSH)
	srv := testServer("web1")

	slow := ShellCommand(srv, "ls /a")
	slow.Timeout = 60 * time.Millisecond
	res, err := d.Submit(context.Background(), slow)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Success || !errors.Is(res.Cause, shell.ErrTimeout) {
		t.Fatalf("slow command: success %v cause %v, want ErrTimeout", res.Success, res.Cause)
	}

	res, err = d.Submit(context.Background(), ShellCommand(srv, "ls /b"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success {
		t.Fatalf("next command failed: %v (out %q)", res.Cause, res.Out)
	}
	if got := res.Body(); got != "B-LISTING\n" {
		t.Errorf("Body() = %q, want the next command's own output", got)
	}
}
