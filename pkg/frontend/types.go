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

package frontend

import (
	"fmt"
	"strconv"
	"strings"
)

type FieldType uint64

const (
	FieldTypeBoolean FieldType = iota
	FieldTypeInteger
	FieldTypeString
	FieldTypeFloat
	FieldTypeNull
)

func (f FieldType) String() string {
	switch f {
	case FieldTypeBoolean:
		return "boolean"

	case FieldTypeInteger:
		return "integer"

	case FieldTypeString:
		return "string"

	case FieldTypeFloat:
		return "float"

	case FieldTypeNull:
		return "null"
	}

	panic("programming error: unexpected field type in String() of FieldType")
}

// ParseFieldType is the inverse of FieldType.String
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "boolean":
		return FieldTypeBoolean, nil
	case "integer":
		return FieldTypeInteger, nil
	case "string":
		return FieldTypeString, nil
	case "float":
		return FieldTypeFloat, nil
	case "null":
		return FieldTypeNull, nil
	}

	return FieldTypeNull, fmt.Errorf("frontend::types::ParseFieldType: unknown field type %q", s)
}

type Value struct {
	Typ FieldType
	Val interface{}
}

// NewValue wraps a go value. Supported are nil, bool, integers, floats and strings.
func NewValue(v interface{}) (*Value, error) {
	switch t := v.(type) {
	case nil:
		return &Value{Typ: FieldTypeNull}, nil
	case bool:
		return &Value{Typ: FieldTypeBoolean, Val: t}, nil
	case int:
		return &Value{Typ: FieldTypeInteger, Val: int64(t)}, nil
	case int32:
		return &Value{Typ: FieldTypeInteger, Val: int64(t)}, nil
	case int64:
		return &Value{Typ: FieldTypeInteger, Val: t}, nil
	case uint32:
		return &Value{Typ: FieldTypeInteger, Val: int64(t)}, nil
	case float32:
		return &Value{Typ: FieldTypeFloat, Val: float64(t)}, nil
	case float64:
		return &Value{Typ: FieldTypeFloat, Val: t}, nil
	case string:
		return &Value{Typ: FieldTypeString, Val: t}, nil
	}

	return nil, fmt.Errorf("frontend::types::NewValue: unsupported value type %T", v)
}

// Interface returns the underlying go value. NULL is returned as nil.
func (v *Value) Interface() interface{} {
	if v == nil || v.Typ == FieldTypeNull {
		return nil
	}
	return v.Val
}

func (v *Value) IsNull() bool {
	return v == nil || v.Typ == FieldTypeNull
}

// String renders the value as a sql literal.
func (v *Value) String() string {
	if v.IsNull() {
		return "NULL"
	}

	switch v.Typ {
	case FieldTypeBoolean:
		if v.GetAsBoolean() {
			return "TRUE"
		}
		return "FALSE"

	case FieldTypeInteger:
		return strconv.FormatInt(v.GetAsInt(), 10)

	case FieldTypeFloat:
		s := strconv.FormatFloat(v.GetAsFloat(), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s

	case FieldTypeString:
		return "'" + strings.ReplaceAll(v.GetAsString(), "'", "''") + "'"
	}

	panic("programming error: unexpected field type in String() of Value")
}

func (v *Value) GetAsBoolean() bool {
	if v.Typ != FieldTypeBoolean {
		panic("programming error: expected type to be boolean")
	}

	return v.Val.(bool)
}

func (v *Value) GetAsInt() int64 {
	switch t := v.Val.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		panic("programming error: expected type to be integer")
	}
}

func (v *Value) GetAsFloat() float64 {
	if v.Typ != FieldTypeFloat {
		panic("programming error: expected type to be float")
	}

	return v.Val.(float64)
}

func (v *Value) GetAsString() string {
	if v.Typ != FieldTypeString {
		panic("programming error: expected type to be string")
	}

	return v.Val.(string)
}

var (
	// Types which can be operands of the '+' operator
	OperatorPlusOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true, FieldTypeString: true}

	// Types which can be operands of the '-' operator
	OperatorMinusOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true}

	// Types which can be operands of the '*' operator
	OperatorAsteriskOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true}

	// Types which can be operands of the '/' operator
	OperatorSlashOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true}

	// Types which can be operands of the '%' operator
	OperatorPercentOperandTypes = map[FieldType]bool{FieldTypeInteger: true}

	// Types which can be operands of the '^' operator
	OperatorCaretOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true}

	// Types which can be operands of the '>', '>=', '<' & '<=' operators
	OperatorComparisonOperandTypes = map[FieldType]bool{FieldTypeInteger: true, FieldTypeFloat: true, FieldTypeString: true}
)
