package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeProber struct{ err error }

func (f *fakeProber) Probe(context.Context) error { return f.err }

func TestCheckAllHealthy(t *testing.T) {
	svc := New(&fakePinger{}, &fakeProber{})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %s, want ok", report.Status)
	}
	if report.Checks["store"] != CheckOK || report.Checks["cache"] != CheckOK {
		t.Errorf("checks = %v", report.Checks)
	}
}

func TestCheckStoreDown(t *testing.T) {
	svc := New(&fakePinger{err: errors.New("refused")}, &fakeProber{})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %s, want degraded", report.Status)
	}
	if report.Checks["store"] != CheckError {
		t.Errorf("checks = %v", report.Checks)
	}
}

func TestCheckWithoutCache(t *testing.T) {
	svc := New(&fakePinger{}, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %s", report.Status)
	}
	if _, ok := report.Checks["cache"]; ok {
		t.Error("cache check present without a prober")
	}
}
