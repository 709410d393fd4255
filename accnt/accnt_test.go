package accnt

import "testing"

func TestUtaddSystaddAccumulate(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(50)
	a.Systadd(10)
	if a.Userns != 150 {
		t.Fatalf("Userns = %d, want 150", a.Userns)
	}
	if a.Sysns != 10 {
		t.Fatalf("Sysns = %d, want 10", a.Sysns)
	}
}

func TestFinishAddsElapsedSystemTime(t *testing.T) {
	var a Accnt_t
	start := a.Now()
	a.Finish(start)
	if a.Sysns < 0 {
		t.Fatalf("Sysns = %d, want >= 0", a.Sysns)
	}
}

func TestAddMergesCounters(t *testing.T) {
	var parent, child Accnt_t
	parent.Utadd(100)
	parent.Systadd(20)
	child.Utadd(5)
	child.Systadd(7)

	parent.Add(&child)

	if parent.Userns != 105 {
		t.Fatalf("Userns = %d, want 105", parent.Userns)
	}
	if parent.Sysns != 27 {
		t.Fatalf("Sysns = %d, want 27", parent.Sysns)
	}
}

func TestFetchEncodesRusageTimevals(t *testing.T) {
	var a Accnt_t
	a.Utadd(2_500_000) // 2.5ms of user time
	buf := a.Fetch()
	if len(buf) != 32 {
		t.Fatalf("len(Fetch()) = %d, want 32", len(buf))
	}
}
