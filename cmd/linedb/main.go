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


package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dr0pdb/linedb/pkg/common"
	"github.com/dr0pdb/linedb/pkg/linesql"
	"github.com/dr0pdb/linedb/pkg/metrics"
	"github.com/dr0pdb/linedb/pkg/rpc"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Config is the top-level configuration of the linedb command.
// Flags override the values of the config file which override the defaults.
var Config = new(struct {
	File    string `long:"config" env:"LINEDB_CONFIG" description:"Path of a yaml config file"`
	DbPath  string `long:"path" env:"LINEDB_PATH" description:"Path of the database file"`
	NoCache bool   `long:"no-cache" description:"Disable the query cache"`

	Log struct {
		Level  string `long:"level" env:"LEVEL" description:"Logging level (trace, debug, info, warn, error)"`
		Format string `long:"format" env:"FORMAT" choice:"text" choice:"json" choice:"color" description:"Logging output format"`
	} `group:"Logging" namespace:"log" env-namespace:"LINEDB_LOG"`
})

// loadConfig builds the database config out of the defaults, the config file and the flags.
func loadConfig() (*common.Config, error) {
	conf := common.NewDefaultConfig()
	if Config.File != "" {
		if err := conf.LoadFromFile(Config.File); err != nil {
			return nil, err
		}
	}

	if Config.DbPath != "" {
		conf.DbPath = Config.DbPath
	}
	if Config.NoCache {
		conf.Cache.Enabled = false
	}
	if Config.Log.Level != "" {
		conf.LogLevel = Config.Log.Level
	}
	if Config.Log.Format != "" {
		conf.LogFormat = Config.Log.Format
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLog(conf.LogLevel, conf.LogFormat); err != nil {
		return nil, err
	}
	return conf, nil
}

func openDB() (*linesql.DB, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return linesql.Open(conf, nil)
}

type cmdExec struct {
	Args struct {
		Statements []string `positional-arg-name:"statement" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *cmdExec) Execute([]string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	for _, sql := range cmd.Args.Statements {
		res, err := db.Execute(sql)
		if err != nil {
			return err
		}
		printResult(os.Stdout, res)
	}
	return nil
}

type cmdShell struct{}

func (cmdShell) Execute([]string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	return runShell(db, os.Stdin, os.Stdout)
}

// runShell executes the statements read from in. A statement ends with a semicolon
// at the end of a line.
func runShell(db *linesql.DB, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var buf strings.Builder

	fmt.Fprint(out, "linedb> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" && buf.Len() == 0 {
			fmt.Fprint(out, "linedb> ")
			continue
		}

		buf.WriteString(line)
		buf.WriteByte(' ')
		if !strings.HasSuffix(line, ";") {
			fmt.Fprint(out, "     -> ")
			continue
		}

		sql := buf.String()
		buf.Reset()

		res, err := db.Execute(sql)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		} else {
			printResult(out, res)
		}
		fmt.Fprint(out, "linedb> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

type cmdServe struct {
	Address        string `long:"address" env:"LINEDB_ADDRESS" description:"Address of the grpc server, overrides the config file"`
	MetricsAddress string `long:"metrics-address" env:"LINEDB_METRICS_ADDRESS" default:":9090" description:"Address serving /metrics"`
}

func (cmd *cmdServe) Execute([]string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Address != "" {
		conf.RPCAddress = cmd.Address
	}

	db, err := linesql.Open(conf, nil)
	if err != nil {
		return err
	}
	if err = metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cmd.MetricsAddress, mux); err != nil {
			log.Error(fmt.Sprintf("linedb::main::serve; metrics server failed: %v", err))
		}
	}()

	lis, err := net.Listen("tcp", conf.RPCAddress)
	if err != nil {
		return err
	}
	gs := grpc.NewServer()
	rpc.Register(gs, rpc.NewServer(db))

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		log.Info("linedb::main::serve; caught signal, stopping")
		gs.GracefulStop()
	}()

	log.WithFields(log.Fields{"address": conf.RPCAddress, "metrics": cmd.MetricsAddress, "path": conf.DbPath}).Info("linedb::main::serve; serving")
	return gs.Serve(lis)
}

type cmdClearCache struct {
	Remote string `long:"remote" description:"Address of a linedb server. The local database is used if empty"`
}

func (cmd *cmdClearCache) Execute([]string) error {
	var n int64
	if cmd.Remote != "" {
		client, err := rpc.Dial(cmd.Remote)
		if err != nil {
			return err
		}
		defer client.Close()

		if n, err = client.ClearCache(context.Background()); err != nil {
			return err
		}
	} else {
		db, err := openDB()
		if err != nil {
			return err
		}
		removed, err := db.ClearCache()
		if err != nil {
			return err
		}
		n = int64(removed)
	}

	fmt.Printf("removed %d cache records\n", n)
	return nil
}

func main() {
	parser := flags.NewParser(Config, flags.Default)

	mustAdd(parser.AddCommand("exec", "Execute statements",
		"Execute each statement argument against the database and print the results", &cmdExec{}))
	mustAdd(parser.AddCommand("shell", "Interactive shell",
		"Read statements terminated by ; from stdin and print the results", &cmdShell{}))
	mustAdd(parser.AddCommand("serve", "Serve the database over grpc", `
serve the database over grpc and expose prometheus metrics until signaled to
exit (via SIGTERM or SIGINT).
`, &cmdServe{}))
	mustAdd(parser.AddCommand("clear-cache", "Clear the query cache",
		"Remove every record of the query cache of a local database or a server", &cmdClearCache{}))

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		log.Fatalf("linedb::main::mustAdd; %v", err)
	}
}
