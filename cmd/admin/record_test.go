package main

import (
	"os"
	"path/filepath"
	"testing"

	"seedsift.ai/internal/persistence/fixture"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRecordThenReplay(t *testing.T) {
	dir := t.TempDir()
	q := filepath.Join(dir, "plains.json")
	if err := os.WriteFile(q, []byte(`{"radius": 256, "match": {"biomes": ["plains"]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "plains.fx")

	if err := run(t, "record", "--query", q, "--seed", "7", "--world_type", "flat", "--step", "chunk", "--out", out); err != nil {
		t.Fatalf("record: %v", err)
	}
	fx, err := fixture.Read(out)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if fx.Header.Seed != 7 || fx.Header.WorldType != "flat" || fx.Header.Step != "chunk" {
		t.Fatalf("header: %+v", fx.Header)
	}
	if fx.Header.Query == "" || len(fx.Samples) == 0 {
		t.Fatalf("nothing captured: query=%q samples=%d", fx.Header.Query, len(fx.Samples))
	}

	if err := run(t, "replay", out); err != nil {
		t.Fatalf("replay: %v", err)
	}
}

func TestRecordRejectsBadQuery(t *testing.T) {
	dir := t.TempDir()
	q := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(q, []byte(`{"match": {"biomes": ["nowhere"]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "record", "--query", q, "--out", filepath.Join(dir, "x.fx")); err == nil {
		t.Fatalf("record accepted an unknown biome")
	}
}

func TestSearchesWithoutIndex(t *testing.T) {
	if err := run(t, "searches", "--data", t.TempDir()); err == nil {
		t.Fatalf("searches succeeded without an index")
	}
}
