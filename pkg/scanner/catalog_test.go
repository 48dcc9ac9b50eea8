package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 100, c.Len())

	seen := make(map[uint16]bool)
	for _, p := range c.Ports() {
		assert.False(t, seen[p], "port %d listed twice", p)
		assert.NotZero(t, p)
		seen[p] = true
	}

	// Order is part of the contract
	assert.Equal(t, []uint16{80, 23, 443, 21, 22}, c.Ports()[:5])
	assert.Equal(t, uint16(37), c.Ports()[99])
}

func TestCatalogIsImmutable(t *testing.T) {
	src := []uint16{80, 443}
	c, err := NewCatalog(src)
	require.NoError(t, err)

	src[0] = 1
	ports := c.Ports()
	ports[1] = 2

	assert.Equal(t, []uint16{80, 443}, c.Ports())
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name    string
		ports   []uint16
		wantErr string
	}{
		{name: "empty", ports: nil, wantErr: "empty"},
		{name: "zero", ports: []uint16{80, 0}, wantErr: "port 0"},
		{name: "duplicate", ports: []uint16{80, 443, 80}, wantErr: "twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.ports)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte("ports: [80, 8080, 443]\n"))
	require.NoError(t, err)
	assert.Equal(t, []uint16{80, 8080, 443}, c.Ports())

	c, err = ParseCatalog([]byte("ports:\n  - 22\n  - 2222\n"))
	require.NoError(t, err)
	assert.Equal(t, []uint16{22, 2222}, c.Ports())

	_, err = ParseCatalog([]byte("ports: [70000]\n"))
	assert.Error(t, err, "out of range for uint16")

	_, err = ParseCatalog([]byte("ports: {}\n"))
	assert.Error(t, err)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ports.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ports: [3306, 5432]\n"), 0o600))

	c, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Equal(t, []uint16{3306, 5432}, c.Ports())

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
