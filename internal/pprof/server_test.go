package pprof

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerStartStop(t *testing.T) {
	srv := NewServer(nil)

	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if port == 0 {
		t.Fatal("Start() returned port 0")
	}
	if got := srv.Port(); got != port {
		t.Errorf("Port() = %d, want %d", got, port)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", port))
	if err != nil {
		t.Fatalf("GET /debug/pprof/ error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /debug/pprof/ status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestServerOnlyServesProfiles(t *testing.T) {
	http.HandleFunc("/debug/leak", func(w http.ResponseWriter, r *http.Request) {})

	srv := NewServer(nil)
	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/debug/leak", port))
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewServer(nil).Stop(context.Background()); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, 6060)
	out := buf.String()
	for _, want := range []string{"http://127.0.0.1:6060/debug/pprof/", "profile?seconds=30", "/heap"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q:\n%s", want, out)
		}
	}
}
