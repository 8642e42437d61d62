package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/gdid/internal/config"
	"github.com/rzbill/gdid/internal/runtime"
	grpcserver "github.com/rzbill/gdid/internal/server/grpc"
	"github.com/rzbill/gdid/pkg/gdid"
)

// startAuthority serves a memory-backed Authority on a loopback port.
func startAuthority(t *testing.T) (AddrFunc, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Authority.Locations = []cfgpkg.LocationConfig{
		{Name: "a", Kind: cfgpkg.KindMemory},
		{Name: "b", Kind: cfgpkg.KindMemory},
	}
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpcserver.New(rt, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = rt.Close()
	})
	addr := l.Addr().String()
	return func() string { return addr }, rt
}

func execute(t *testing.T, addr AddrFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot(addr)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestGenerateOneAtATime(t *testing.T) {
	addr, _ := startAuthority(t)
	out, err := execute(t, addr, "generate", "--scope", "billing", "--sequence", "invoice", "--count", "3", "--format", "human")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	want := "0:1\n0:2\n0:3\n"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestGenerateConsecutive(t *testing.T) {
	addr, _ := startAuthority(t)
	out, err := execute(t, addr, "generate", "--scope", "billing", "--sequence", "invoice",
		"--count", "5", "--consecutive", "--block-size", "2", "--format", "counter")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	lines := strings.Fields(out)
	if len(lines) != 5 {
		t.Fatalf("expected 5 ids, got %q", out)
	}
	for i, l := range lines {
		if want := []string{"1", "2", "3", "4", "5"}[i]; l != want {
			t.Fatalf("line %d: got %s want %s", i, l, want)
		}
	}
}

func TestGenerateTextRoundTrips(t *testing.T) {
	addr, _ := startAuthority(t)
	out, err := execute(t, addr, "generate", "--scope", "billing", "--sequence", "invoice")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	id, err := gdid.Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("parse %q: %v", out, err)
	}
	if id != (gdid.GDID{Era: 0, Counter: 1}) {
		t.Fatalf("unexpected id %v", id.Format())
	}
}

func TestGenerateRejectsBadFlags(t *testing.T) {
	addr, _ := startAuthority(t)
	cases := [][]string{
		{"generate", "--scope", "s", "--sequence", "q", "--count", "0"},
		{"generate", "--scope", "s", "--sequence", "q", "--vicinity", "x"},
		{"generate", "--scope", "s", "--sequence", "q", "--format", "xml"},
		{"generate", "--sequence", "q"},
	}
	for _, args := range cases {
		if _, err := execute(t, addr, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestGenerateInvalidNameNotRetried(t *testing.T) {
	addr, _ := startAuthority(t)
	_, err := execute(t, addr, "generate", "--scope", "bad scope", "--sequence", "q", "--retries", "1")
	if gdid.KindOf(err) != gdid.KindInvalidName {
		t.Fatalf("expected invalid name, got %v", err)
	}
}

func TestBlockCommand(t *testing.T) {
	addr, _ := startAuthority(t)
	out, err := execute(t, addr, "block", "--scope", "billing", "--sequence", "invoice", "--size", "10", "--vicinity", "100")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var blk blockView
	if err := json.Unmarshal([]byte(out), &blk); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if blk.StartInclusive != 100 || blk.Count != 10 || blk.Authority == "" {
		t.Fatalf("unexpected block %+v", blk)
	}
}

func TestSequencesCommand(t *testing.T) {
	addr, rt := startAuthority(t)
	ctx := context.Background()
	for _, seq := range []string{"invoice", "order"} {
		if _, err := rt.Authority().AllocateBlock(ctx, "billing", seq, 10, gdid.VicinityNone); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	out, err := execute(t, addr, "sequences", "--scope", "billing", "--filter", `sequence == "order"`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var infos []gdid.SequenceInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].Sequence != "order" {
		t.Fatalf("unexpected infos %+v", infos)
	}

	out, err = execute(t, addr, "sequences", "--scope", "empty")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestHealthCommand(t *testing.T) {
	addr, _ := startAuthority(t)
	out, err := execute(t, addr, "health")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "SERVING") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseCommand(t *testing.T) {
	id := gdid.GDID{Era: 2, Counter: 77}
	out, err := execute(t, func() string { return "" }, "parse", "2:77", id.String())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := id.String() + "\t2:77"
	if len(lines) != 2 || lines[0] != want || lines[1] != want {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := execute(t, func() string { return "" }, "parse", "nope"); err == nil {
		t.Fatal("expected parse error")
	}
}
