//go:build cgo

package lookup

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func openTestCellDB(t *testing.T) *CellDB {
	t.Helper()
	db, err := OpenCellDB(filepath.Join(t.TempDir(), "cells.db"))
	if err != nil {
		t.Fatalf("OpenCellDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCellDB_ImportPlain(t *testing.T) {
	db := openTestCellDB(t)
	ctx := context.Background()

	csvData := "cell_id,latitude,longitude,address\n" +
		"404-45-10-1234,12.97,77.59,MG Road\n" +
		"BAD,abc,77.1,skip\n" +
		"OUT,95,77.1,skip\n"
	n, err := db.ImportCSV(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported = %d, want 1", n)
	}

	p, ok, err := db.Lookup(ctx, Cell{ID: "40445101234"})
	if err != nil || !ok {
		t.Fatalf("Lookup by dashless id: ok=%v err=%v", ok, err)
	}
	if p.Lat != 12.97 || p.Description != "MG Road" || p.Source != SourceLocal {
		t.Errorf("position = %+v", p)
	}

	if _, ok, _ := db.Lookup(ctx, Cell{ID: "nope"}); ok {
		t.Error("unexpected match for unknown cell")
	}
}

func TestCellDB_ImportOpenCellIDLayout(t *testing.T) {
	db := openTestCellDB(t)
	ctx := context.Background()

	csvData := "radio,mcc,net,area,cell,unit,lon,lat,range\n" +
		"GSM,404,45,10,1234,0,77.59,12.97,500\n" +
		"GSM,404,46,10,1234,0,77.00,13.00,800\n"
	if n, err := db.ImportCSV(ctx, strings.NewReader(csvData)); err != nil || n != 2 {
		t.Fatalf("ImportCSV = %d, %v", n, err)
	}

	p, ok, err := db.Lookup(ctx, Cell{ID: "1234", MCC: intp(404), MNC: intp(46), LAC: intp(10)})
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if p.Lat != 13.00 || p.Range != 800 {
		t.Errorf("expected the exact radio match, got %+v", p)
	}
}

func TestCellDB_ImportMissingColumns(t *testing.T) {
	db := openTestCellDB(t)
	if _, err := db.ImportCSV(context.Background(), strings.NewReader("name,lat\nx,1\n")); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestCellResolver_LocalFirstAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := openCellIDServer(t, &hits)
	defer srv.Close()

	db := openTestCellDB(t)
	ctx := context.Background()
	if err := db.Put(ctx, Cell{ID: "LOCAL1"}, Position{Lat: 1, Lon: 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r := NewCellResolver(Config{OpenCellIDURL: srv.URL, OpenCellIDKey: "k1"}, db)
	if p := r.Resolve(ctx, Cell{ID: "LOCAL1"}); p.Source != SourceLocal {
		t.Errorf("Source = %s, want local", p.Source)
	}
	if hits.Load() != 0 {
		t.Error("remote provider called for a locally known cell")
	}

	remote := Cell{ID: "1234", MCC: intp(404), MNC: intp(45), LAC: intp(10)}
	if p := r.Resolve(ctx, remote); p.Source != SourceSecondary {
		t.Fatalf("first resolve Source = %s", p.Source)
	}
	if p := r.Resolve(ctx, remote); p.Source != SourceLocal {
		t.Errorf("second resolve Source = %s, want cached local", p.Source)
	}
	if hits.Load() != 1 {
		t.Errorf("remote hits = %d, want 1", hits.Load())
	}
}
