package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)

func newService() *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func noop(context.Context) error { return nil }

// drain runs every job due up to until, in order, and returns their names.
func drain(t *testing.T, cs *Service, until time.Time) []string {
	t.Helper()
	var names []string
	for i := 0; i < 100; i++ {
		job, ok := cs.NextDue(until)
		if !ok {
			return names
		}
		cs.Run(context.Background(), job.ID, job.State.NextRun)
		names = append(names, job.Name)
	}
	t.Fatal("jobs never settled")
	return nil
}

func TestScheduleValidation(t *testing.T) {
	cs := newService()
	tests := []struct {
		name     string
		schedule Schedule
	}{
		{"past at", At(t0.Add(-time.Minute))},
		{"zero at", Schedule{Kind: KindAt}},
		{"tiny interval", Every(10 * time.Millisecond)},
		{"bad expr", Expr("every tuesday")},
		{"empty expr", Expr("")},
		{"unknown kind", Schedule{Kind: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cs.AddJob(tt.name, tt.schedule, t0, noop); err == nil {
				t.Error("AddJob accepted an invalid schedule")
			}
		})
	}
	if _, err := cs.AddJob("nil", Every(time.Minute), t0, nil); err == nil {
		t.Error("AddJob accepted a nil function")
	}
}

func TestNextRun(t *testing.T) {
	cs := newService()
	at, _ := cs.AddJob("at", At(t0.Add(90*time.Second)), t0, noop)
	every, _ := cs.AddJob("every", Every(time.Minute), t0, noop)
	cr, _ := cs.AddJob("cron", Expr("*/5 * * * *"), t0, noop)

	tests := []struct {
		job  Job
		want time.Time
	}{
		{at, t0.Add(90 * time.Second)},
		{every, t0.Add(time.Minute)},
		{cr, time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if !tt.job.State.NextRun.Equal(tt.want) {
			t.Errorf("%s next = %v, want %v", tt.job.Name, tt.job.State.NextRun, tt.want)
		}
	}
}

func TestDueOrder(t *testing.T) {
	cs := newService()
	cs.AddJob("minutely", Every(time.Minute), t0, noop)
	cs.AddJob("once", At(t0.Add(90*time.Second)), t0, noop)

	got := drain(t, cs, t0.Add(3*time.Minute))
	want := []string{"minutely", "once", "minutely", "minutely"}
	if len(got) != len(want) {
		t.Fatalf("ran %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ran %v, want %v", got, want)
		}
	}
	for _, j := range cs.ListJobs(true) {
		if j.Name == "once" && j.Enabled {
			t.Error("one-time job still enabled after running")
		}
	}
}

func TestRetryBackoff(t *testing.T) {
	cs := newService()
	cs.SetRetryConfig(RetryConfig{MaxRetries: 2, BaseDelay: 10 * time.Second, MaxDelay: time.Minute})
	fails := 0
	job, _ := cs.AddJob("flaky", Every(time.Hour), t0, func(context.Context) error {
		fails++
		return errors.New("boom")
	})

	due := t0.Add(time.Hour)
	wantNext := []time.Time{due.Add(10 * time.Second), due.Add(30 * time.Second), due.Add(30 * time.Second).Add(time.Hour)}
	now := due
	for i, want := range wantNext {
		if err := cs.Run(context.Background(), job.ID, now); err == nil {
			t.Fatalf("run %d succeeded", i)
		}
		got, _ := cs.GetJob(job.ID)
		if !got.State.NextRun.Equal(want) {
			t.Fatalf("after run %d next = %v, want %v", i, got.State.NextRun, want)
		}
		now = got.State.NextRun
	}
	log := cs.RunLog()
	if len(log) != 3 || log[2].Attempt != 3 || log[2].Status != "error" {
		t.Errorf("run log = %+v", log)
	}
}

func TestPanicIsAnError(t *testing.T) {
	cs := newService()
	cs.SetRetryConfig(RetryConfig{})
	job, _ := cs.AddJob("panics", Every(time.Minute), t0, func(context.Context) error { panic("oops") })
	if err := cs.Run(context.Background(), job.ID, t0.Add(time.Minute)); err == nil {
		t.Error("panic not reported")
	}
}

func TestEnableRemoveAndReschedule(t *testing.T) {
	cs := newService()
	job, _ := cs.AddJob("tick", Every(time.Minute), t0, noop)

	if err := cs.EnableJob(job.ID, false, t0); err != nil {
		t.Fatalf("EnableJob: %v", err)
	}
	if _, ok := cs.NextDue(t0.Add(time.Hour)); ok {
		t.Error("disabled job is due")
	}
	cs.EnableJob(job.ID, true, t0.Add(10*time.Minute))
	if got, _ := cs.GetJob(job.ID); !got.State.NextRun.Equal(t0.Add(11 * time.Minute)) {
		t.Errorf("re-enabled next = %v", got.State.NextRun)
	}

	drain(t, cs, t0.Add(15*time.Minute))
	cs.Reschedule(t0)
	if got, _ := cs.GetJob(job.ID); got.State.Runs != 0 || !got.State.NextRun.Equal(t0.Add(time.Minute)) {
		t.Errorf("after reschedule = %+v", got.State)
	}
	if len(cs.RunLog()) != 0 {
		t.Error("run log survived reschedule")
	}

	if err := cs.RemoveJob(job.ID); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if err := cs.RemoveJob(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second remove = %v, want ErrJobNotFound", err)
	}
}
