package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		port uint16
		want string
	}{
		{21, "FTP"},
		{22, "SSH"},
		{23, "Telnet"},
		{25, "SMTP"},
		{53, "DNS"},
		{80, "HTTP"},
		{443, "HTTPS"},
		{3306, "MySQL"},
		{5432, "PostgreSQL"},
		{8080, "HTTP Proxy"},
		{1, Unknown},
		{31337, Unknown},
		{65535, Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.port), "port %d", tt.port)
	}
}

func TestAll(t *testing.T) {
	entries := All()

	assert.Len(t, entries, len(table))
	assert.GreaterOrEqual(t, len(entries), 20)
	for i, e := range entries {
		assert.NotEmpty(t, e.Name)
		assert.Equal(t, Describe(e.Port), e.Name)
		if i > 0 {
			assert.Less(t, entries[i-1].Port, e.Port)
		}
	}
}
