/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"storeplanner/internal/domain"
	applog "storeplanner/internal/log"
)

//go:embed schema/mindmap_state.schema.json
var mindmapStateSchema []byte

// ErrInvalidPayload means a 2xx answer did not match the expected document shape.
var ErrInvalidPayload = errors.New("backend: payload does not match schema")

var mindmapSchema = gojsonschema.NewBytesLoader(mindmapStateSchema)

// ValidateMindmapState checks a raw /api/mindmap/state document against the embedded schema.
func ValidateMindmapState(raw []byte) error {
	res, err := gojsonschema.Validate(mindmapSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
}

// GetMindmapState fetches node progress, validating the document before decoding it.
func (c *Client) GetMindmapState(ctx context.Context) (domain.MindmapState, error) {
	const path = "/api/mindmap/state"
	r, err := Fetch[json.RawMessage](ctx, c, http.MethodGet, path, nil)
	raw, err := typed(r, err, http.MethodGet, path)
	if err != nil {
		return domain.MindmapState{}, err
	}
	if err := ValidateMindmapState(raw); err != nil {
		applog.WithComponent("backend").Warn("mindmap state rejected", "err", err)
		return domain.MindmapState{}, err
	}
	var st domain.MindmapState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.MindmapState{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return st, nil
}
