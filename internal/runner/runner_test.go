package runner

import (
	"testing"
	"time"

	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/logbus"
)

func TestRunnerCapturesStdoutLines(t *testing.T) {
	bus := logbus.New(10)
	sub := bus.Subscribe("echoer")
	defer sub.Close()

	r := New(config.ServiceSpec{Name: "echoer", Command: "echo hello; echo world"}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var lines []string
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.C():
			lines = append(lines, e.Line)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for line")
		}
	}
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Fatalf("unexpected lines: %v", lines)
	}

	select {
	case res := <-r.Exited():
		if !res.Normal() {
			t.Fatalf("expected normal exit, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
}

func TestRunnerExitCodeIsSurfaced(t *testing.T) {
	bus := logbus.New(10)
	r := New(config.ServiceSpec{Name: "failer", Command: "exit 7"}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case res := <-r.Exited():
		if res.Code != 7 {
			t.Fatalf("expected exit code 7, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
}

func TestRunnerStopSendsGracefulTermination(t *testing.T) {
	bus := logbus.New(10)
	r := New(config.ServiceSpec{Name: "sleeper", Command: "trap 'exit 0' TERM; sleep 30 & wait"}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	res := r.Stop(2 * time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected graceful stop well under the grace window, took %v", elapsed)
	}
	if res.Err != nil {
		t.Fatalf("unexpected error on stop: %v", res.Err)
	}
}

func TestRunnerStopEscalatesAfterGrace(t *testing.T) {
	bus := logbus.New(10)
	r := New(config.ServiceSpec{Name: "stubborn", Command: "trap '' TERM; sleep 30"}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	res := r.Stop(200 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Fatalf("expected to wait out the grace window, took %v", elapsed)
	}
	if res.Signal == "" && res.Err == nil {
		t.Fatalf("expected the child to be reported killed, got %+v", res)
	}
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	bus := logbus.New(10)
	r := New(config.ServiceSpec{Name: "quick", Command: "true"}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-r.Exited()

	first := r.Stop(time.Second)
	second := r.Stop(time.Second)
	if first != second {
		t.Fatalf("expected idempotent Stop results, got %+v then %+v", first, second)
	}
}

func TestRunnerInjectsPortEnvVar(t *testing.T) {
	bus := logbus.New(10)
	sub := bus.Subscribe("portcheck")
	defer sub.Close()

	r := New(config.ServiceSpec{Name: "portcheck", Command: "echo $PORT", Port: 4100}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case e := <-sub.C():
		if e.Line != "4100" {
			t.Fatalf("expected PORT=4100 to be injected, got line %q", e.Line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
}

func TestRunnerEnvOverlayWins(t *testing.T) {
	bus := logbus.New(10)
	sub := bus.Subscribe("envcheck")
	defer sub.Close()

	r := New(config.ServiceSpec{
		Name:    "envcheck",
		Command: "echo $FOO",
		Env:     map[string]string{"FOO": "overlay-value"},
	}, bus)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case e := <-sub.C():
		if e.Line != "overlay-value" {
			t.Fatalf("expected overlay to win, got %q", e.Line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
}
