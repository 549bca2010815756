/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

const redacted = "REDACTED"

// secretKeys are attr keys and query parameters whose values are credentials.
var secretKeys = map[string]bool{
	"ticket":        true,
	"token":         true,
	"access_token":  true,
	"authorization": true,
}

var (
	secretParamRe = regexp.MustCompile(`(?i)\b(ticket|token|access_token)=([^&\s"']+)`)
	bearerRe      = regexp.MustCompile(`(?i)\bbearer\s+[\w.~+/=-]+`)
)

// Scrub masks credentials in one attribute. Attrs named like a secret lose their value;
// string and error values keep their text with ticket/token parameters and bearer
// credentials replaced.
func Scrub(a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redacted)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); mayHoldSecret(s) {
			return slog.String(a.Key, RedactString(s))
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			if s := err.Error(); mayHoldSecret(s) {
				return slog.String(a.Key, RedactString(s))
			}
		}
	}
	return a
}

func mayHoldSecret(s string) bool {
	return strings.Contains(s, "=") || strings.Contains(strings.ToLower(s), "bearer")
}

// RedactString masks ticket/token query parameters and bearer credentials inside free text,
// such as an error message quoting a request URL.
func RedactString(s string) string {
	s = secretParamRe.ReplaceAllString(s, "${1}="+redacted)
	return bearerRe.ReplaceAllString(s, "Bearer "+redacted)
}

// RedactURL masks credential query parameters so a URL can be logged or put into an error.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	changed := false
	for k := range q {
		if secretKeys[strings.ToLower(k)] {
			q.Set(k, redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
