package health

import (
	"fmt"
	"testing"
)

func TestHealthManagerAggregation(t *testing.T) {
	hm := NewHealthManager(nil)

	if !hm.IsHealthy() {
		t.Error("manager with no checks should report healthy")
	}

	hm.Register("cache", func() error { return nil })
	if !hm.IsHealthy() {
		t.Error("healthy component should not fail the manager")
	}

	hm.Register("remote_api", func() error { return fmt.Errorf("api disabled: server error 503") })
	if hm.IsHealthy() {
		t.Error("unhealthy component should fail the manager")
	}

	status := hm.GetStatus()
	if status["cache"] != "Healthy" {
		t.Errorf("expected Healthy, got %s", status["cache"])
	}
	if status["remote_api"] != "Unhealthy: api disabled: server error 503" {
		t.Errorf("unexpected status: %s", status["remote_api"])
	}
}

func TestHealthManagerRecovers(t *testing.T) {
	hm := NewHealthManager(nil)

	broken := true
	hm.Register("remote_api", func() error {
		if broken {
			return fmt.Errorf("tripped")
		}
		return nil
	})

	if hm.IsHealthy() {
		t.Fatal("expected unhealthy while the check fails")
	}
	broken = false
	if !hm.IsHealthy() {
		t.Fatal("expected healthy after the check recovers")
	}
}
