package progress

import (
	"strings"
	"testing"
)

func TestProjectDownloading(t *testing.T) {
	ev, err := Project(Record{Status: "downloading", Completed: 1, Total: 2})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ev.Percent != 50 || !ev.Downloading || ev.Terminal {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Label != "Downloading: 50% (1 B / 2 B)" {
		t.Fatalf("label=%q", ev.Label)
	}
}

func TestProjectZeroTotalNoDivideByZero(t *testing.T) {
	ev, err := Project(Record{Status: "downloading", Completed: 0, Total: 0})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ev.Percent != 0 {
		t.Fatalf("percent=%d", ev.Percent)
	}
}

func TestProjectClampOver100(t *testing.T) {
	// Upstream does not guarantee completed <= total.
	ev, err := Project(Record{Status: "downloading", Completed: 300, Total: 100})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ev.Percent != 100 {
		t.Fatalf("percent=%d", ev.Percent)
	}
}

func TestProjectVerifying(t *testing.T) {
	for _, status := range []string{"verifying", "verifying digest"} {
		ev, err := Project(Record{Status: status})
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if ev.Label != "Verifying checksum..." {
			t.Fatalf("%s: label=%q", status, ev.Label)
		}
	}
}

func TestProjectWritingManifest(t *testing.T) {
	ev, _ := Project(Record{Status: "writing manifest"})
	if ev.Label != "Finalizing update..." {
		t.Fatalf("label=%q", ev.Label)
	}
}

func TestProjectSuccess(t *testing.T) {
	ev, err := Project(Record{Status: "success"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !ev.Terminal || !ev.OK || ev.Label != "Pull completed successfully" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestProjectError(t *testing.T) {
	ev, err := Project(Record{Status: "error", Error: "disk full"})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("err=%v", err)
	}
	if !IsOperationError(err) {
		t.Fatalf("expected operation error")
	}
	if !ev.Terminal || ev.OK {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestProjectErrorDefaultMessage(t *testing.T) {
	_, err := Project(Record{Status: "error"})
	if err == nil || !strings.Contains(err.Error(), "operation failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestProjectUnknownStatusPassesThrough(t *testing.T) {
	ev, err := Project(Record{Status: "pulling manifest"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ev.Label != "pulling manifest" || ev.Terminal {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestProjectCaseSensitive(t *testing.T) {
	ev, _ := Project(Record{Status: "Downloading"})
	if ev.Downloading {
		t.Fatalf("status matching must be case-sensitive")
	}
	if ev.Label != "Downloading" {
		t.Fatalf("label=%q", ev.Label)
	}
}
