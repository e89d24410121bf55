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

package eval

import (
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dr0pdb/linedb/pkg/frontend"
	"github.com/google/uuid"
)

var timeNow = time.Now

type builtin struct {
	minArgs, maxArgs int // maxArgs < 0 is variadic
	fn               func(ev *evaluator, name string, args []interface{}) interface{}
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"UPPER":             {1, 1, stringFunc(strings.ToUpper)},
		"LOWER":             {1, 1, stringFunc(strings.ToLower)},
		"LENGTH":            {1, 1, lengthFunc},
		"ABS":               {1, 1, absFunc},
		"COALESCE":          {1, -1, coalesceFunc},
		"RANDOM":            {0, 0, func(*evaluator, string, []interface{}) interface{} { return rand.Int63() }},
		"RAND":              {0, 0, func(*evaluator, string, []interface{}) interface{} { return rand.Float64() }},
		"UUID":              {0, 0, func(*evaluator, string, []interface{}) interface{} { return uuid.New().String() }},
		"NOW":               {0, 0, nowFunc},
		"CURRENT_TIMESTAMP": {0, 0, nowFunc},
		"UNIX_TIMESTAMP":    {0, 0, func(*evaluator, string, []interface{}) interface{} { return timeNow().Unix() }},
		"CURRENT_DATE":      {0, 0, formatNowFunc("2006-01-02")},
		"CURRENT_TIME":      {0, 0, formatNowFunc("15:04:05")},
	}
}

func (ev *evaluator) evaluateFunctionCall(expr *frontend.FunctionCallExpression) interface{} {
	b, ok := builtins[expr.Name]
	if !ok {
		return ev.faultf("unknown function %s", expr.Name)
	}
	if len(expr.Args) < b.minArgs || (b.maxArgs >= 0 && len(expr.Args) > b.maxArgs) {
		return ev.faultf("wrong number of arguments %d for function %s", len(expr.Args), expr.Name)
	}

	args := make([]interface{}, 0, len(expr.Args))
	for _, a := range expr.Args {
		args = append(args, ev.evaluate(a))
	}
	if ev.err != nil {
		return nil
	}

	return b.fn(ev, expr.Name, args)
}

func stringFunc(f func(string) string) func(*evaluator, string, []interface{}) interface{} {
	return func(ev *evaluator, name string, args []interface{}) interface{} {
		if args[0] == nil {
			return nil
		}
		s, ok := args[0].(string)
		if !ok {
			return ev.faultf("function %s expects a string, found %s", name, typeOf(args[0]))
		}
		return f(s)
	}
}

func lengthFunc(ev *evaluator, name string, args []interface{}) interface{} {
	if args[0] == nil {
		return nil
	}
	s, ok := args[0].(string)
	if !ok {
		return ev.faultf("function %s expects a string, found %s", name, typeOf(args[0]))
	}
	return int64(utf8.RuneCountInString(s))
}

func absFunc(ev *evaluator, name string, args []interface{}) interface{} {
	switch t := args[0].(type) {
	case nil:
		return nil
	case int64:
		if t < 0 {
			return -t
		}
		return t
	case float64:
		if t < 0 {
			return -t
		}
		return t
	}
	return ev.faultf("function %s expects a number, found %s", name, typeOf(args[0]))
}

func coalesceFunc(ev *evaluator, name string, args []interface{}) interface{} {
	for _, a := range args {
		if a != nil {
			return a
		}
	}
	return nil
}

func nowFunc(*evaluator, string, []interface{}) interface{} {
	return timeNow().UnixNano()
}

func formatNowFunc(layout string) func(*evaluator, string, []interface{}) interface{} {
	return func(*evaluator, string, []interface{}) interface{} {
		return timeNow().Format(layout)
	}
}
