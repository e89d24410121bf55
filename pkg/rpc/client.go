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


package rpc

import (
	"context"

	"github.com/dr0pdb/linedb/pkg/linesql"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a client of the LineDB service
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client of the server at address.
// Without options the connection is insecure.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient creates a client over an existing connection
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Execute executes a single statement on the server
func (c *Client) Execute(ctx context.Context, sql string) (*linesql.Result, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Execute", wrapperspb.String(sql), out); err != nil {
		log.WithFields(log.Fields{"sql": sql, "err": err}).Debug("rpc::client::Execute; error in grpc request")
		return nil, err
	}
	return decodeResult(out)
}

// ClearCache removes every record of the query cache on the server
func (c *Client) ClearCache(ctx context.Context) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/ClearCache", &emptypb.Empty{}, out); err != nil {
		log.WithFields(log.Fields{"err": err}).Debug("rpc::client::ClearCache; error in grpc request")
		return 0, err
	}
	return out.GetValue(), nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
