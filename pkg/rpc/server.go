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

	icommon "github.com/dr0pdb/linedb/internal/common"
	"github.com/dr0pdb/linedb/pkg/codec"
	"github.com/dr0pdb/linedb/pkg/linesql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

/*
	The LineDB service is described with well known protobuf types so that no generated code is needed.

	service LineDB {
		rpc Execute(google.protobuf.StringValue) returns (google.protobuf.Struct);
		rpc ClearCache(google.protobuf.Empty) returns (google.protobuf.Int64Value);
	}

	The Execute response holds the fields
		columns:  list of strings
		rows:     list of row tokens, see codec.EncodeRow
		affected: number
		hit:      bool
*/

const (
	serviceName = "linedb.LineDB"

	fieldColumns  = "columns"
	fieldRows     = "rows"
	fieldAffected = "affected"
	fieldHit      = "hit"
)

// Database is the statement api served over grpc
type Database interface {
	Execute(sql string) (*linesql.Result, error)
	ClearCache() (int, error)
}

// LineDBServer is the server api of the LineDB service
type LineDBServer interface {
	Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ClearCache(ctx context.Context, req *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// Server serves a database over grpc
type Server struct {
	db Database
}

var _ LineDBServer = (*Server)(nil)

// NewServer creates a new server of the database
func NewServer(db Database) *Server {
	return &Server{db: db}
}

// Register registers the LineDB service on the grpc server
func Register(gs *grpc.Server, srv LineDBServer) {
	gs.RegisterService(&serviceDesc, srv)
}

// Execute executes a single statement
func (s *Server) Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	log.WithFields(log.Fields{"sql": req.GetValue()}).Debug("rpc::server::Execute; received request")

	res, err := s.db.Execute(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := encodeResult(res)
	if err != nil {
		log.Error("rpc::server::Execute; error in encoding the result: ", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// ClearCache removes every record of the query cache
func (s *Server) ClearCache(ctx context.Context, req *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.db.ClearCache()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func encodeResult(res *linesql.Result) (*structpb.Struct, error) {
	cols := make([]interface{}, 0, len(res.Columns))
	for _, c := range res.Columns {
		cols = append(cols, c)
	}

	rows := make([]interface{}, 0, len(res.Rows))
	for _, r := range res.Rows {
		token, err := codec.EncodeRow(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, token)
	}

	return structpb.NewStruct(map[string]interface{}{
		fieldColumns:  cols,
		fieldRows:     rows,
		fieldAffected: float64(res.Affected),
		fieldHit:      res.Hit,
	})
}

func decodeResult(s *structpb.Struct) (*linesql.Result, error) {
	fields := s.GetFields()
	res := &linesql.Result{
		Affected: int64(fields[fieldAffected].GetNumberValue()),
		Hit:      fields[fieldHit].GetBoolValue(),
	}

	for _, v := range fields[fieldColumns].GetListValue().GetValues() {
		res.Columns = append(res.Columns, v.GetStringValue())
	}

	for i, v := range fields[fieldRows].GetListValue().GetValues() {
		row, err := codec.DecodeRow(v.GetStringValue())
		if err != nil {
			return nil, errors.Wrapf(err, "rpc::server::decodeResult; decoding row %d", i)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// toStatus maps database errors to grpc status codes
func toStatus(err error) error {
	code := codes.Unknown
	switch errors.Cause(err).(type) {
	case icommon.InvalidQueryError, icommon.EvaluatorError:
		code = codes.InvalidArgument
	case icommon.NotFoundError:
		code = codes.NotFound
	case icommon.LockTimeoutError:
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LineDBServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
		{
			MethodName: "ClearCache",
			Handler:    clearCacheHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linedb.proto",
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LineDBServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Execute",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LineDBServer).Execute(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func clearCacheHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LineDBServer).ClearCache(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/ClearCache",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LineDBServer).ClearCache(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
