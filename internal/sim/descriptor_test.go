package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/boundedring/errors"
)

const processTable = `PID Arrival Burst Priority
1 0 5 2
2  1 3 1 producer 4

3 2 4 3 Consumer 4
4 0 1 1 consumer
`

func TestParseDescriptors(t *testing.T) {
	ds, err := ParseDescriptors(strings.NewReader(processTable))
	require.NoError(t, err)

	assert.Equal(t, []Descriptor{
		{PID: 1, Arrival: 0, Burst: 5, Priority: 2, Role: RoleIdle},
		{PID: 2, Arrival: 1, Burst: 3, Priority: 1, Role: RoleProducer, Items: 4},
		{PID: 3, Arrival: 2, Burst: 4, Priority: 3, Role: RoleConsumer, Items: 4},
		{PID: 4, Arrival: 0, Burst: 1, Priority: 1, Role: RoleConsumer, Items: 1},
	}, ds)
	assert.Equal(t, -1, Balance(ds))
}

func TestParseDescriptorsHeaderOnly(t *testing.T) {
	ds, err := ParseDescriptors(strings.NewReader("PID Arrival Burst Priority\n"))
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestParseDescriptorsErrors(t *testing.T) {
	tests := []struct {
		name  string
		table string
		want  string
	}{
		{"too few columns", "hdr\n1 2 3\n", "line 2"},
		{"too many columns", "hdr\n1 2 3 4 producer 1 extra\n", "line 2"},
		{"not a number", "hdr\n1 0 5 2\n2 x 5 2\n", "line 3"},
		{"bad items", "hdr\n1 0 5 2 producer many\n", "column 6"},
		{"unknown role", "hdr\n1 0 5 2 juggler\n", "unknown role"},
		{"negative burst", "hdr\n1 0 -5 2\n", ">= 0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescriptors(strings.NewReader(tc.table))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseDescriptorsYAML(t *testing.T) {
	doc := `
- pid: 1
  arrival: 0
  burst: 2
  priority: 1
  role: producer
  items: 3
- pid: 2
  burst: 2
  role: consumer
  items: 3
- pid: 3
  burst: 1
`
	ds, err := ParseDescriptorsYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, ds, 3)
	assert.Equal(t, RoleProducer, ds[0].Role)
	assert.Equal(t, RoleIdle, ds[2].Role)
	assert.Equal(t, 0, Balance(ds))

	_, err = ParseDescriptorsYAML(strings.NewReader("- pid: [1\n"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = ParseDescriptorsYAML(strings.NewReader("- pid: 1\n  role: nobody\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 1")
}

func TestLoadDescriptors(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "processes.txt")
	require.NoError(t, os.WriteFile(txt, []byte(processTable), 0o600))
	ds, err := LoadDescriptors(txt)
	require.NoError(t, err)
	assert.Len(t, ds, 4)

	yml := filepath.Join(dir, "processes.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("- pid: 9\n  burst: 1\n"), 0o600))
	ds, err = LoadDescriptors(yml)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, 9, ds[0].PID)

	_, err = LoadDescriptors(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
