/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed tree.schema.json
var treeSchema []byte

// Schema returns the JSON schema exported trees conform to.
func Schema() []byte { return append([]byte(nil), treeSchema...) }

// ErrInvalidTree wraps schema violations reported by Validate.
var ErrInvalidTree = errors.New("tree does not conform to schema")

// Validate checks a JSON tree document against the embedded schema.
func Validate(doc []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(treeSchema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidTree, strings.Join(msgs, "; "))
}
