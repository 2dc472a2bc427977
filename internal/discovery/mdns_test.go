package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"relay._bodymap._tcp.local.", "relay"},
		{`front\ desk._bodymap._tcp.local.`, "front desk"},
		{"other._http._tcp.local.", "other._http._tcp.local."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, instanceName(tt.name))
		})
	}
}

func TestServerURL(t *testing.T) {
	s := Server{Addr: "192.168.1.20:8080"}
	assert.Equal(t, "http://192.168.1.20:8080", s.URL())
}
