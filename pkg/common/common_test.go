package common

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/dr0pdb/linedb/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDirectory = filepath.Join("/tmp", "linedbtest", "common")

func TestProtectedBoolSwap(t *testing.T) {
	b := NewProtectedBool(true)
	assert.True(t, b.Swap(false), "Swap should return the previous value")
	assert.False(t, b.Get(), "Swap should store the new value")

	b.Set(true)
	assert.True(t, b.Get(), "Set should store the new value")
}

func TestErrorStack(t *testing.T) {
	s := &ErrorStack{}
	assert.False(t, s.Pending(), "new stack should be empty")
	assert.Nil(t, s.Err(), "empty stack should fold to nil")

	s.Push(nil)
	assert.False(t, s.Pending(), "nil errors are ignored")

	first := errors.New("first")
	s.Push(first)
	s.Pushf(errors.New("second"), "while scanning %s", "users")

	assert.True(t, s.Pending())
	assert.Equal(t, 2, len(s.Errors()))
	assert.Equal(t, first, s.Errors()[0])
	assert.Equal(t, "while scanning users: second", s.Last().Error())
	assert.Equal(t, "first; while scanning users: second", s.Err().Error())

	s.Clear()
	assert.False(t, s.Pending(), "Clear should empty the stack")
}

func TestConfigDefaultsAreValid(t *testing.T) {
	conf := NewDefaultConfig()
	assert.Nil(t, conf.Validate(), "default config should be valid")
}

func TestConfigValidate(t *testing.T) {
	conf := NewDefaultConfig()
	conf.Cache.MaxEntries = 0
	assert.NotNil(t, conf.Validate(), "zero max entries should be rejected")

	conf = NewDefaultConfig()
	conf.DbPath = ""
	assert.NotNil(t, conf.Validate(), "empty db path should be rejected")

	conf = NewDefaultConfig()
	conf.Lock.PollInterval = time.Minute
	assert.NotNil(t, conf.Validate(), "poll interval above the wait timeout should be rejected")

	conf = NewDefaultConfig()
	conf.LogLevel = "loud"
	assert.NotNil(t, conf.Validate(), "unknown log level should be rejected")
}

func TestConfigLoadFromFile(t *testing.T) {
	test.CreateTestDirectory(testDirectory)
	defer test.CleanupTestDirectory(testDirectory)

	path := filepath.Join(testDirectory, "linedb.yaml")
	data := []byte(`
dbPath: /tmp/some.db
cache:
  enabled: false
  maxEntries: 4
lock:
  waitTimeout: 2s
logLevel: debug
`)
	require.Nil(t, ioutil.WriteFile(path, data, 0644))

	conf := NewDefaultConfig()
	err := conf.LoadFromFile(path)
	require.Nil(t, err, "Unexpected error loading the config file")

	assert.Equal(t, "/tmp/some.db", conf.DbPath)
	assert.False(t, conf.Cache.Enabled, "explicit false should override the default")
	assert.Equal(t, 4, conf.Cache.MaxEntries)
	assert.Equal(t, 2*time.Second, conf.Lock.WaitTimeout)
	assert.Equal(t, 30*time.Second, conf.Lock.DeadlockTimeout, "absent keys keep their defaults")
	assert.Equal(t, "debug", conf.LogLevel)
}

func TestConfigLoadFromMissingFile(t *testing.T) {
	conf := NewDefaultConfig()
	err := conf.LoadFromFile(filepath.Join(testDirectory, "missing.yaml"))
	assert.NotNil(t, err, "missing file should return an error")
	assert.Equal(t, NewDefaultConfig(), conf, "config should be untouched on error")
}
