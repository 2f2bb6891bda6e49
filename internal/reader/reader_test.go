package reader

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/source"
)

func TestWorkers(t *testing.T) {
	if got := Workers(source.NewSpec(nil)); got != ParallelWorkers {
		t.Errorf("default Workers = %d, want %d", got, ParallelWorkers)
	}
	if got := Workers(source.NewSpec(map[string]any{config.KeyParallel: false})); got != 1 {
		t.Errorf("serial Workers = %d, want 1", got)
	}
}

func TestCollect(t *testing.T) {
	var inFlight, peak atomic.Int32
	got, err := Collect(context.Background(), []string{"a", "b", "c", "d", "e"}, 2,
		func(_ context.Context, id string) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return id + id, nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 || got["c"] != "cc" {
		t.Errorf("Collect = %v", got)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d, want <= 2", peak.Load())
	}
}

func TestCollectError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), []string{"ok", "bad"}, 1,
		func(_ context.Context, id string) (int, error) {
			if id == "bad" {
				return 0, boom
			}
			return 1, nil
		})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestInRegion(t *testing.T) {
	kw := config.KW{
		MinLon: -150, MaxLon: -140, MinLat: 55, MaxLat: 62,
		MinTime: time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(2021, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	inside := source.DatasetMeta{
		HasBBox: true, MinLon: -145, MaxLon: -144, MinLat: 58, MaxLat: 59,
		Start: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	if !InRegion(kw, inside) {
		t.Error("inside dataset rejected")
	}
	outside := inside
	outside.MinLon, outside.MaxLon = -120, -110
	if InRegion(kw, outside) {
		t.Error("dataset east of box accepted")
	}
	early := inside
	early.End = time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC)
	if InRegion(kw, early) {
		t.Error("dataset ending before range accepted")
	}
	if !InRegion(kw, source.DatasetMeta{}) {
		t.Error("dataset without coverage rejected")
	}
}

func TestVariables(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("temp", "degC", []float64{1, 2})
	_ = tab.AddColumn("salt", "psu", []float64{30, math.NaN()})

	all, err := Variables(tab, nil)
	if err != nil || all != dataset.Dataset(tab) {
		t.Fatalf("no selection should return the dataset itself: %v", err)
	}
	sel, err := Variables(tab, []string{"salt", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if names := sel.Names(); len(names) != 1 || names[0] != "salt" {
		t.Errorf("selected %v, want [salt]", names)
	}
}
