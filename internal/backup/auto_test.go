package backup

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAutoBackup_StartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	auto := NewAutoBackup(m, time.Hour)
	defer auto.Stop()

	if err := auto.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := auto.Start(ctx); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	if !auto.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	list, _ := m.ListBackups(ctx)
	if len(list) != 1 {
		t.Fatalf("ListBackups() = %d, want exactly one synchronous backup", len(list))
	}
	if list[0].Label != LabelAuto {
		t.Errorf("Label = %q, want %q", list[0].Label, LabelAuto)
	}
}

func TestAutoBackup_StopIsIdempotent(t *testing.T) {
	m, _ := setupTestManager(t)
	auto := NewAutoBackup(m, time.Hour)

	// Never started
	auto.Stop()
	if auto.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}

	if err := auto.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	auto.Stop()
	auto.Stop()
	if auto.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestAutoBackup_Ticks(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	auto := NewAutoBackup(m, 20*time.Millisecond)
	if err := auto.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer auto.Stop()

	waitFor(t, "periodic backups", func() bool {
		list, _ := m.ListBackups(ctx)
		return len(list) >= 3
	})
}

func TestAutoBackup_ContextCancelStops(t *testing.T) {
	m, _ := setupTestManager(t)
	auto := NewAutoBackup(m, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if err := auto.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	waitFor(t, "auto backup to stop", func() bool { return !auto.IsRunning() })

	// Restartable after the context ended.
	if err := auto.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	auto.Stop()
}

func TestNewAutoBackup_DefaultInterval(t *testing.T) {
	m, _ := setupTestManager(t)
	if got := NewAutoBackup(m, 0).Interval(); got != DefaultAutoInterval {
		t.Errorf("Interval() = %v, want %v", got, DefaultAutoInterval)
	}
}
