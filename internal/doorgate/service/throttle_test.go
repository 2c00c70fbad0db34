package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

func TestAttemptThrottle_Cooldown(t *testing.T) {
	th := service.NewAttemptThrottle(10 * time.Second)

	if got := th.Check("ab12", epoch); got != service.Allowed {
		t.Fatalf("first Check = %v, want Allowed", got)
	}
	th.Record("ab12", epoch)

	if got := th.Check("ab12", epoch.Add(5*time.Second)); got != service.TooSoon {
		t.Errorf("Check at +5s = %v, want TooSoon", got)
	}
	if got := th.Check("ab12", epoch.Add(11*time.Second)); got != service.Allowed {
		t.Errorf("Check at +11s = %v, want Allowed", got)
	}
	if got := th.Check("other", epoch.Add(time.Second)); got != service.Allowed {
		t.Errorf("other badge = %v, want Allowed", got)
	}
}

func TestAttemptThrottle_RejectionDoesNotExtend(t *testing.T) {
	th := service.NewAttemptThrottle(10 * time.Second)
	th.Record("ab12", epoch)

	// Rejected checks at +9s must not push the window out.
	if th.Check("ab12", epoch.Add(9*time.Second)) != service.TooSoon {
		t.Fatal("expected TooSoon at +9s")
	}
	if got := th.Check("ab12", epoch.Add(10*time.Second)); got != service.Allowed {
		t.Errorf("Check at +10s = %v, want Allowed", got)
	}
}

func TestAttemptThrottle_RecordNeverMovesBackwards(t *testing.T) {
	th := service.NewAttemptThrottle(10 * time.Second)
	th.Record("ab12", epoch.Add(20*time.Second))
	th.Record("ab12", epoch)

	if th.Check("ab12", epoch.Add(25*time.Second)) != service.TooSoon {
		t.Error("older Record overwrote a newer one")
	}
}

func TestAttemptThrottle_GuardSerializesBadge(t *testing.T) {
	th := service.NewAttemptThrottle(10 * time.Second)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := th.Guard("ab12")
			defer release()
			if th.Check("ab12", epoch) == service.Allowed {
				th.Record("ab12", epoch)
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted)
	}
}

func TestRecentAuthentications(t *testing.T) {
	r := service.NewRecentAuthentications()
	r.Touch("U1", epoch)

	if !r.Within("U1", epoch.Add(30*time.Second), time.Minute) {
		t.Error("Within at +30s = false, want true")
	}
	if r.Within("U1", epoch.Add(90*time.Second), time.Minute) {
		t.Error("Within at +90s = true, want false")
	}
	if r.Within("U2", epoch, time.Minute) {
		t.Error("unknown user should not be recent")
	}

	r.Touch("U1", epoch.Add(-time.Hour))
	if !r.Within("U1", epoch.Add(30*time.Second), time.Minute) {
		t.Error("older Touch moved timestamp backwards")
	}
}
