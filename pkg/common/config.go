/**
 * Copyright 2021 The LineDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"io/ioutil"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	// KB - Kilobytes
	KB uint64 = 1024

	// MB - Megabytes
	MB uint64 = 1024 * 1024

	// DefaultMaxCacheEntries is the default number of cached results kept per table.
	DefaultMaxCacheEntries = 32
)

// CacheConfig configures the query result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxEntries bounds the number of cache records kept for a single table.
	MaxEntries int `yaml:"maxEntries"`
}

// LockConfig configures the whole database lock stored in the file header.
type LockConfig struct {
	// WaitTimeout is how long an acquisition polls before giving up.
	WaitTimeout time.Duration `yaml:"waitTimeout"`

	// DeadlockTimeout is the age after which a held lock is considered stale and broken.
	DeadlockTimeout time.Duration `yaml:"deadlockTimeout"`

	PollInterval time.Duration `yaml:"pollInterval"`
}

// Config defines the configuration settings for a linedb database.
type Config struct {
	DbPath string      `yaml:"dbPath"`
	Cache  CacheConfig `yaml:"cache"`
	Lock   LockConfig  `yaml:"lock"`

	// Address the rpc server listens on, eg. ":7070"
	RPCAddress string `yaml:"rpcAddress"`

	// Logging config
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// NewDefaultConfig returns a new default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		DbPath: "/var/lib/linedb/linedb.db",
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: DefaultMaxCacheEntries,
		},
		Lock: LockConfig{
			WaitTimeout:     10 * time.Second,
			DeadlockTimeout: 30 * time.Second,
			PollInterval:    10 * time.Millisecond,
		},
		RPCAddress: ":7070",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Validate validates a Config and returns an error if it's invalid.
func (conf *Config) Validate() error {
	if conf.DbPath == "" {
		return fmt.Errorf("invalid db path provided in config")
	}
	if conf.Cache.MaxEntries < 1 {
		return fmt.Errorf("invalid cache.maxEntries %d provided in config; expected at least 1", conf.Cache.MaxEntries)
	}
	if conf.Lock.WaitTimeout <= 0 {
		return fmt.Errorf("invalid lock.waitTimeout provided in config")
	}
	if conf.Lock.DeadlockTimeout <= 0 {
		return fmt.Errorf("invalid lock.deadlockTimeout provided in config")
	}
	if conf.Lock.PollInterval <= 0 || conf.Lock.PollInterval > conf.Lock.WaitTimeout {
		return fmt.Errorf("invalid lock.pollInterval provided in config")
	}
	if _, err := log.ParseLevel(conf.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel %q provided in config", conf.LogLevel)
	}
	return nil
}

// fileConfig mirrors Config with pointers so that absent keys can be told apart from zero values.
type fileConfig struct {
	DbPath *string `yaml:"dbPath"`
	Cache  struct {
		Enabled    *bool `yaml:"enabled"`
		MaxEntries *int  `yaml:"maxEntries"`
	} `yaml:"cache"`
	Lock struct {
		WaitTimeout     *time.Duration `yaml:"waitTimeout"`
		DeadlockTimeout *time.Duration `yaml:"deadlockTimeout"`
		PollInterval    *time.Duration `yaml:"pollInterval"`
	} `yaml:"lock"`
	RPCAddress *string `yaml:"rpcAddress"`
	LogLevel   *string `yaml:"logLevel"`
	LogFormat  *string `yaml:"logFormat"`
}

// LoadFromFile loads the config from the file. It assumes that config already has the defaults.
// In the case of an error, it leaves the config untouched.
func (conf *Config) LoadFromFile(path string) error {
	log.Info(fmt.Sprintf("linedb::config::LoadFromFile; loading config from file %s", path))
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Error(fmt.Sprintf("linedb::config::LoadFromFile; error reading config from file %s, error %s", path, err))
		return err
	}
	return conf.load(data)
}

func (conf *Config) load(data []byte) error {
	fconf := fileConfig{}
	if err := yaml.Unmarshal(data, &fconf); err != nil {
		log.Error(fmt.Sprintf("linedb::config::load; error unmarshalling config, error %s", err))
		return err
	}

	log.WithFields(log.Fields{"config": fconf}).Debug("linedb::config::load; read contents from the file")

	// populate fields
	if fconf.DbPath != nil {
		conf.DbPath = *fconf.DbPath
	}
	if fconf.Cache.Enabled != nil {
		conf.Cache.Enabled = *fconf.Cache.Enabled
	}
	if fconf.Cache.MaxEntries != nil {
		conf.Cache.MaxEntries = *fconf.Cache.MaxEntries
	}
	if fconf.Lock.WaitTimeout != nil {
		conf.Lock.WaitTimeout = *fconf.Lock.WaitTimeout
	}
	if fconf.Lock.DeadlockTimeout != nil {
		conf.Lock.DeadlockTimeout = *fconf.Lock.DeadlockTimeout
	}
	if fconf.Lock.PollInterval != nil {
		conf.Lock.PollInterval = *fconf.Lock.PollInterval
	}
	if fconf.RPCAddress != nil {
		conf.RPCAddress = *fconf.RPCAddress
	}
	if fconf.LogLevel != nil {
		conf.LogLevel = *fconf.LogLevel
	}
	if fconf.LogFormat != nil {
		conf.LogFormat = *fconf.LogFormat
	}
	return nil
}
