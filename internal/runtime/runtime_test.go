package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/rzbill/gdid/internal/config"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	"github.com/rzbill/gdid/pkg/gdid"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(context.Background(), Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	st := rt.Locations(context.Background())
	if len(st) != 2 || !st[0].OK || !st[1].OK {
		t.Fatalf("locations: %+v", st)
	}
}

func TestAllocatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	opts := Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()}

	rt, err := Open(ctx, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	blk, err := rt.Authority().AllocateBlock(ctx, "billing", "invoice", 100, gdid.VicinityNone)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if blk.StartInclusive != 1 || blk.Count != 100 {
		t.Fatalf("unexpected block %+v", blk)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt, err = Open(ctx, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	blk, err = rt.Authority().AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	if err != nil {
		t.Fatalf("allocate after reopen: %v", err)
	}
	if blk.StartInclusive != 101 {
		t.Fatalf("expected 101 after reopen, got %d", blk.StartInclusive)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Authority.Locations = nil
	if _, err := Open(context.Background(), Options{DataDir: t.TempDir(), Config: cfg}); err == nil {
		t.Fatalf("expected error without locations")
	}
}

func TestMemoryOnlyRuntime(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Authority.Name = "mem-node"
	cfg.Authority.Locations = []cfgpkg.LocationConfig{{Name: "m1", Kind: cfgpkg.KindMemory}}
	rt, err := Open(context.Background(), Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if rt.Authority().Name() != "mem-node" {
		t.Fatalf("authority name %q", rt.Authority().Name())
	}
	if rt.Registry() == nil || rt.Metrics() == nil {
		t.Fatalf("metrics not wired")
	}
}
