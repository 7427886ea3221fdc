package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/locator"
)

type stubLocator struct {
	art locator.Artifacts
	err error
}

func (s stubLocator) Locate() (locator.Artifacts, error) { return s.art, s.err }

func TestRunLocate(t *testing.T) {
	var out bytes.Buffer
	err := runLocate(&out, stubLocator{art: locator.Artifacts{
		Runtime: "/venv/bin/python",
		Script:  "/proj/modules/capture_xpath.py",
		Driver:  "/proj/drivers/msedgedriver",
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/venv/bin/python", "capture_xpath.py", "msedgedriver"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	missing := &locator.ConfigurationError{Artifact: locator.ArtifactDriver}
	if err := runLocate(&out, stubLocator{err: missing}); !errors.Is(err, missing) {
		t.Errorf("runLocate() error = %v, want %v", err, missing)
	}
}

type stubPolicy struct {
	victims []cleanup.Victim
	result  cleanup.Result
	swept   bool
}

func (s *stubPolicy) Plan(context.Context, cleanup.Request) ([]cleanup.Victim, error) {
	return s.victims, nil
}

func (s *stubPolicy) Sweep(context.Context, cleanup.Request) cleanup.Result {
	s.swept = true
	return s.result
}

func TestRunSweepDryRun(t *testing.T) {
	policy := &stubPolicy{victims: []cleanup.Victim{{PID: 10, Name: "msedgedriver", Reason: cleanup.ReasonDriver}}}
	var out bytes.Buffer
	if err := runSweep(context.Background(), &out, policy, cleanup.Request{}, false); err != nil {
		t.Fatal(err)
	}
	if policy.swept {
		t.Error("dry run must not kill")
	}
	if !strings.Contains(out.String(), "10\tmsedgedriver\tdriver") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunSweepKill(t *testing.T) {
	policy := &stubPolicy{result: cleanup.Result{
		Terminated: []cleanup.Victim{{PID: 11, Name: "msedge", Reason: cleanup.ReasonBrowser}},
		Failures:   []cleanup.Outcome{{Victim: cleanup.Victim{PID: 12, Name: "msedgedriver"}, Err: errors.New("operation not permitted")}},
	}}
	var out bytes.Buffer
	if err := runSweep(context.Background(), &out, policy, cleanup.Request{}, true); err != nil {
		t.Fatal(err)
	}
	if !policy.swept {
		t.Fatal("kill should sweep")
	}
	if !strings.Contains(out.String(), "terminated 11") || !strings.Contains(out.String(), "failed     12") {
		t.Errorf("output = %q", out.String())
	}
}
