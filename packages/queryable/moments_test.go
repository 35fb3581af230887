package queryable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoment_AddPrependReplaceClear(t *testing.T) {
	var m Moment[func() string]

	m.Add(func() string { return "b" })
	m.Prepend(func() string { return "a" })
	m.Add(func() string { return "c" })

	var got []string
	for _, f := range m.Observers() {
		got = append(got, f())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	m.Replace(func() string { return "only" })
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "only", m.Observers()[0]())

	assert.True(t, m.Clear())
	assert.False(t, m.Clear())
	assert.Equal(t, 0, m.Len())
}

func TestMoment_ObserversIsSnapshot(t *testing.T) {
	var m Moment[func() int]
	m.Add(func() int { return 1 })

	snapshot := m.Observers()
	m.Add(func() int { return 2 })

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, m.Len())
}
