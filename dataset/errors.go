// Copyright 2025 gorse Project Authors
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

package dataset

import "fmt"

// MissingDataError reports that a required input is empty or absent.
type MissingDataError struct {
	Name string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data: %s", e.Name)
}

func NewMissingDataError(format string, args ...any) error {
	return &MissingDataError{Name: fmt.Sprintf(format, args...)}
}
