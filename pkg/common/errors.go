// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrColumnRequired is returned when a primary key or partition column
	// is neither provided by an insert nor generated.
	ErrColumnRequired = errors.NewKind("Column \"%s\" is required but is missing from the insert statement")

	// ErrColumnUnknown is returned when a column cannot be found in the
	// relations in scope.
	ErrColumnUnknown = errors.NewKind("Column %s unknown")

	// ErrColumnAmbiguous is returned when an unqualified column is present
	// in more than one relation in scope.
	ErrColumnAmbiguous = errors.NewKind("Column \"%s\" is ambiguous")

	// ErrDuplicateColumn is returned when an insert names a target column twice.
	ErrDuplicateColumn = errors.NewKind("column \"%s\" specified more than once")

	// ErrColumnCountMismatch is returned when the number of source columns
	// does not match the number of target columns.
	ErrColumnCountMismatch = errors.NewKind("Number of target columns (%d) of insert statement doesn't match number of source columns (%d)")

	// ErrGeneratedColumnTarget is returned when a generated column gets an
	// explicit value that is not its generated expression.
	ErrGeneratedColumnTarget = errors.NewKind("Column \"%s\" is a generated column and cannot be written by an update on conflict")

	ErrTableUnknown = errors.NewKind("Relation '%s' unknown")

	ErrRelationDuplicate = errors.NewKind("\"%s\" specified more than once in the FROM clause")

	ErrOperationNotSupported = errors.NewKind("The relation \"%s\" doesn't support or allow %s operations")

	ErrInvalidMapping = errors.NewKind("invalid mapping of table %s: %s")

	ErrUnsupportedFeature = errors.NewKind("unsupported feature: %s")

	// ErrJoinOrder is returned when an outer, semi or anti join cannot be
	// kept in the requested join order.
	ErrJoinOrder = errors.NewKind("join %s cannot be planned in order %s")
)
