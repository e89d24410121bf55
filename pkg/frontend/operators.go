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

type Operator uint64

const (
	OperatorEqual              Operator = iota // '='
	OperatorGreaterThan                        // '>'
	OperatorLessThan                           // '<'
	OperatorPlus                               // '+'
	OperatorMinus                              // '-'
	OperatorAsterisk                           // '*'
	OperatorSlash                              // '/'
	OperatorCaret                              // '^'
	OperatorPercent                            // '%'
	OperatorExclamation                        // '!'
	OperatorQuestionMark                       // '?'
	OperatorNotEqual                           // "!=", "<>"
	OperatorLessThanEqualTo                    // "<="
	OperatorGreaterThanEqualTo                 // ">="
	OperatorAndAnd                             // "&&", AND
	OperatorOrOr                               // "||", OR
)

var itemTypeToOperator = map[itemType]Operator{
	itemEqual:              OperatorEqual,
	itemGreaterThan:        OperatorGreaterThan,
	itemLessThan:           OperatorLessThan,
	itemPlus:               OperatorPlus,
	itemMinus:              OperatorMinus,
	itemAsterisk:           OperatorAsterisk,
	itemSlash:              OperatorSlash,
	itemCaret:              OperatorCaret,
	itemPercent:            OperatorPercent,
	itemExclamation:        OperatorExclamation,
	itemQuestionMark:       OperatorQuestionMark,
	itemNotEqual:           OperatorNotEqual,
	itemLessThanEqualTo:    OperatorLessThanEqualTo,
	itemGreaterThanEqualTo: OperatorGreaterThanEqualTo,
	itemAndAnd:             OperatorAndAnd,
	itemOrOr:               OperatorOrOr,
}

func (o Operator) String() string {
	switch o {
	case OperatorEqual:
		return "="
	case OperatorGreaterThan:
		return ">"
	case OperatorLessThan:
		return "<"
	case OperatorPlus:
		return "+"
	case OperatorMinus:
		return "-"
	case OperatorAsterisk:
		return "*"
	case OperatorSlash:
		return "/"
	case OperatorCaret:
		return "^"
	case OperatorPercent:
		return "%"
	case OperatorExclamation:
		return "!"
	case OperatorQuestionMark:
		return "?"
	case OperatorNotEqual:
		return "!="
	case OperatorLessThanEqualTo:
		return "<="
	case OperatorGreaterThanEqualTo:
		return ">="
	case OperatorAndAnd:
		return "AND"
	case OperatorOrOr:
		return "OR"
	}

	panic("programming error: unexpected operator in String() of Operator")
}
