package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("conn refused")

	tests := []struct {
		name        string
		backend     Pinger
		objects     Pinger
		wantStatus  Status
		wantBackend CheckResult
		wantObjects CheckResult
	}{
		{"all healthy", &mockPinger{}, &mockPinger{}, Healthy, CheckOK, CheckOK},
		{"backend down", &mockPinger{err: down}, &mockPinger{}, Unhealthy, CheckError, CheckOK},
		{"objects down", &mockPinger{}, &mockPinger{err: down}, Degraded, CheckOK, CheckError},
		{"both down", &mockPinger{err: down}, &mockPinger{err: down}, Unhealthy, CheckError, CheckError},
		{"no backend", nil, nil, Unhealthy, CheckError, ""},
		{"no object store", &mockPinger{}, nil, Healthy, CheckOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.backend, tt.objects).Check(context.Background())

			if r.Status != tt.wantStatus {
				t.Errorf("status: expected %q, got %q", tt.wantStatus, r.Status)
			}
			if r.Checks[Backend] != tt.wantBackend {
				t.Errorf("backend: expected %q, got %q", tt.wantBackend, r.Checks[Backend])
			}
			got, ok := r.Checks[Objects]
			if tt.wantObjects == "" {
				if ok {
					t.Errorf("objects check should be absent, got %q", got)
				}
				return
			}
			if got != tt.wantObjects {
				t.Errorf("objects: expected %q, got %q", tt.wantObjects, got)
			}
		})
	}
}
